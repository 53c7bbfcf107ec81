package profile

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// Lexer tokenizes NAND profile files.
var Lexer = lexer.MustSimple([]lexer.SimpleRule{
	// Comments run to end of line
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Whitespace", Pattern: `[\s\t\n\r]+`},

	{Name: "KwProfile", Pattern: `\bprofile\b`},
	{Name: "KwTrue", Pattern: `\btrue\b`},
	{Name: "KwFalse", Pattern: `\bfalse\b`},

	{Name: "LBrace", Pattern: `\{`},
	{Name: "RBrace", Pattern: `\}`},
	{Name: "Assign", Pattern: `=`},

	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},
	{Name: "Hex", Pattern: `0[xX][0-9a-fA-F]+`},
	{Name: "Integer", Pattern: `-?[0-9]+`},
	{Name: "Ident", Pattern: `[a-zA-Z][a-zA-Z0-9_]*`},
})
