package token

type Type int

const (
	EOF Type = iota
	Ident
	Number
	Attribute
	Use
	Fn
	Let
	If
	Else
	Return
	LParen
	RParen
	LBrace
	RBrace
	Semi
	Comma
	Colon
	PathSep
	Dot
	Arrow
	Eq
	Plus
	Minus
	Star
	EqEq
	Neq
	Lt
	Gt
)

var KeywordMap = map[string]Type{
	"use":    Use,
	"fn":     Fn,
	"let":    Let,
	"if":     If,
	"else":   Else,
	"return": Return,
}

// Reverse mapping from Type to the keyword string
var TypeStrings = make(map[Type]string)

var punctStrings = map[Type]string{
	EOF: "end of file", Ident: "identifier", Number: "number", Attribute: "attribute",
	LParen: "(", RParen: ")", LBrace: "{", RBrace: "}", Semi: ";", Comma: ",", Colon: ":",
	PathSep: "::", Dot: ".", Arrow: "->", Eq: "=", Plus: "+", Minus: "-", Star: "*",
	EqEq: "==", Neq: "!=", Lt: "<", Gt: ">",
}

func init() {
	for str, typ := range KeywordMap {
		TypeStrings[typ] = str
	}
	for typ, str := range punctStrings {
		TypeStrings[typ] = str
	}
}

func (t Type) String() string {
	if s, ok := TypeStrings[t]; ok {
		return s
	}
	return "unknown"
}

type Token struct {
	Type      Type
	Value     string
	FileIndex int
	Line      int
	Column    int
	Len       int
}
