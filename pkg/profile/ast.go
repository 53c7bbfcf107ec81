package profile

import "github.com/alecthomas/participle/v2/lexer"

// File is a parsed profile file. One file may declare several profiles.
//
//	profile "brcm-2k-bch4" {
//	  page = 2048
//	  poly = 0x5803
//	  ...
//	}
type File struct {
	Decls []*Decl `parser:"@@*"`
}

// Decl is one profile block.
type Decl struct {
	Pos    lexer.Position
	Name   string   `parser:"KwProfile @String LBrace"`
	Fields []*Field `parser:"@@* RBrace"`
}

// Field is a key = value line.
type Field struct {
	Pos   lexer.Position
	Key   string `parser:"@Ident Assign"`
	Value *Value `parser:"@@"`
}

// Value holds exactly one literal.
type Value struct {
	Hex     *string `parser:"  @Hex"`
	Integer *string `parser:"| @Integer"`
	String  *string `parser:"| @String"`
	Bool    *string `parser:"| @( KwTrue | KwFalse )"`
}

func (v *Value) kind() string {
	switch {
	case v.Hex != nil, v.Integer != nil:
		return "number"
	case v.String != nil:
		return "string"
	case v.Bool != nil:
		return "bool"
	}
	return "empty"
}
