package types

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Parse reads a canonical signature as produced by Type.String
func Parse(sig string) (Type, error) {
	p := &sigParser{src: sig}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected trailing input %q", p.src[p.pos:])
	}
	return t, nil
}

// MustParse is Parse for signatures known to be valid
func MustParse(sig string) Type {
	t, err := Parse(sig)
	if err != nil {
		panic(err)
	}
	return t
}

type sigParser struct {
	src string
	pos int
}

func (p *sigParser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("type signature %q, offset %d: %s", p.src, p.pos, fmt.Sprintf(format, args...))
}

func (p *sigParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *sigParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *sigParser) expect(c byte) error {
	if p.peek() != c {
		return p.errorf("expected '%c'", c)
	}
	p.pos++
	return nil
}

func (p *sigParser) word() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		r := rune(p.src[p.pos])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *sigParser) parseType() (Type, error) {
	base, err := p.parseBase()
	if err != nil {
		return nil, err
	}
	for p.peek() == '[' {
		p.pos++
		if p.peek() == ']' {
			p.pos++
			base = NewDynArray(base)
			continue
		}
		digits := p.word()
		size, err := strconv.Atoi(digits)
		if err != nil || size < 0 {
			return nil, p.errorf("invalid array size %q", digits)
		}
		if err := p.expect(']'); err != nil {
			return nil, err
		}
		base = NewArray(base, size)
	}
	return base, nil
}

func (p *sigParser) parseBase() (Type, error) {
	w := p.word()
	switch {
	case w == "":
		return nil, p.errorf("expected a type")
	case w == "address":
		return Address, nil
	case w == "bytes":
		return Bytes, nil
	case w == "string":
		return String, nil
	case w == "int_const":
		return IntLiteral, nil
	case w == "literal_string":
		return StringLiteral, nil
	case w == "enum":
		name := p.word()
		if name == "" {
			return nil, p.errorf("enum needs a name")
		}
		return NewEnum(name), nil
	case w == "contract":
		name := p.word()
		if name == "" {
			return nil, p.errorf("contract needs a name")
		}
		return NewContract(name), nil
	case w == "struct":
		return p.parseStruct()
	case strings.HasPrefix(w, "uint"):
		return p.intType(strings.TrimPrefix(w, "uint"), false)
	case strings.HasPrefix(w, "int"):
		return p.intType(strings.TrimPrefix(w, "int"), true)
	case strings.HasPrefix(w, "bytes"):
		size, err := strconv.Atoi(strings.TrimPrefix(w, "bytes"))
		if err != nil || size < 1 || size > 32 {
			return nil, p.errorf("invalid fixed bytes type %q", w)
		}
		return FixedBytes(size), nil
	}
	return nil, p.errorf("unknown type %q", w)
}

func (p *sigParser) intType(suffix string, signed bool) (Type, error) {
	bits := 256
	if suffix != "" {
		var err error
		if bits, err = strconv.Atoi(suffix); err != nil || bits < 8 || bits > 256 || bits%8 != 0 {
			return nil, p.errorf("invalid integer width %q", suffix)
		}
	}
	return &IntType{Bits: bits, Signed: signed}, nil
}

func (p *sigParser) parseStruct() (Type, error) {
	name := p.word()
	if name == "" {
		return nil, p.errorf("struct needs a name")
	}
	if err := p.expect('{'); err != nil {
		return nil, err
	}
	st := &StructType{Name: name}
	if p.peek() == '}' {
		p.pos++
		return st, nil
	}
	for {
		fieldName := p.word()
		if fieldName == "" {
			return nil, p.errorf("expected a field name")
		}
		if err := p.expect(':'); err != nil {
			return nil, err
		}
		ft, err := p.parseType()
		if err != nil {
			return nil, err
		}
		st.Fields = append(st.Fields, Field{Name: fieldName, Type: ft})
		if p.peek() == ',' {
			p.pos++
			continue
		}
		if err := p.expect('}'); err != nil {
			return nil, err
		}
		return st, nil
	}
}
