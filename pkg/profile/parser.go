package profile

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/participle/v2"
)

// Parser reads profile files.
type Parser struct {
	parser *participle.Parser[File]
}

// NewParser builds the profile grammar.
func NewParser() (*Parser, error) {
	parser, err := participle.Build[File](
		participle.Lexer(Lexer),
		participle.Elide("Comment", "Whitespace"),
		participle.Unquote("String"),
	)
	if err != nil {
		return nil, fmt.Errorf("profile: build parser: %w", err)
	}
	return &Parser{parser: parser}, nil
}

// Parse reads a file from r. name is used in positions and error messages.
func (p *Parser) Parse(name string, r io.Reader) (*File, error) {
	f, err := p.parser.Parse(name, r)
	if err != nil {
		return nil, fmt.Errorf("profile: parse: %w", err)
	}
	return f, nil
}

func (p *Parser) ParseString(name, input string) (*File, error) {
	f, err := p.parser.ParseString(name, input)
	if err != nil {
		return nil, fmt.Errorf("profile: parse: %w", err)
	}
	return f, nil
}

func (p *Parser) ParseFile(filename string) (*File, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("profile: open: %w", err)
	}
	defer file.Close()
	return p.Parse(filename, file)
}
