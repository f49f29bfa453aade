// Package types defines the logical type grammar that layout conversions are computed over.
package types

import (
	"fmt"
	"strings"
)

// DynamicSize marks an ArrayType whose length is only known at runtime
const DynamicSize = -1

// Type is a closed set of type descriptors. Only the variants declared in this
// package implement it, so a type switch over them is exhaustive.
type Type interface {
	// String returns the canonical signature. Two types are equal iff their signatures are.
	String() string
	isType()
}

type IntType struct {
	Bits   int
	Signed bool
}

type FixedBytesType struct{ Size int }

type AddressType struct{}

type EnumType struct{ Name string }

type BytesType struct{}

type StringType struct{}

type ArrayType struct {
	Elem Type
	Size int // DynamicSize for dynamic arrays
}

type Field struct {
	Name string
	Type Type
}

type StructType struct {
	Name   string
	Fields []Field
}

// IntLiteralType is the type of an untyped integer constant
type IntLiteralType struct{}

// StringLiteralType is the type of an untyped string or hex constant
type StringLiteralType struct{}

// ContractType is a user-defined reference type whose values need no layout translation
type ContractType struct{ Name string }

func (*IntType) isType()           {}
func (*FixedBytesType) isType()    {}
func (*AddressType) isType()       {}
func (*EnumType) isType()          {}
func (*BytesType) isType()         {}
func (*StringType) isType()        {}
func (*ArrayType) isType()         {}
func (*StructType) isType()        {}
func (*IntLiteralType) isType()    {}
func (*StringLiteralType) isType() {}
func (*ContractType) isType()      {}

func (t *IntType) String() string {
	if t.Signed {
		return fmt.Sprintf("int%d", t.Bits)
	}
	return fmt.Sprintf("uint%d", t.Bits)
}
func (t *FixedBytesType) String() string  { return fmt.Sprintf("bytes%d", t.Size) }
func (*AddressType) String() string       { return "address" }
func (t *EnumType) String() string        { return "enum " + t.Name }
func (*BytesType) String() string         { return "bytes" }
func (*StringType) String() string        { return "string" }
func (*IntLiteralType) String() string    { return "int_const" }
func (*StringLiteralType) String() string { return "literal_string" }
func (t *ContractType) String() string    { return "contract " + t.Name }

func (t *ArrayType) String() string {
	if t.IsDynamic() {
		return t.Elem.String() + "[]"
	}
	return fmt.Sprintf("%s[%d]", t.Elem.String(), t.Size)
}

func (t *StructType) String() string {
	var sb strings.Builder
	sb.WriteString("struct ")
	sb.WriteString(t.Name)
	sb.WriteString("{")
	for i, f := range t.Fields {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(f.Name)
		sb.WriteString(":")
		sb.WriteString(f.Type.String())
	}
	sb.WriteString("}")
	return sb.String()
}

func (t *ArrayType) IsDynamic() bool { return t.Size == DynamicSize }

// Pre-defined types
var (
	Uint8   = Uint(8)
	Uint16  = Uint(16)
	Uint32  = Uint(32)
	Uint64  = Uint(64)
	Uint128 = Uint(128)
	Uint256 = Uint(256)
	Int8    = Int(8)
	Int16   = Int(16)
	Int32   = Int(32)
	Int256  = Int(256)
	Bytes1  = FixedBytes(1)
	Bytes32 = FixedBytes(32)
	Address = &AddressType{}
	Bytes   = &BytesType{}
	String  = &StringType{}

	IntLiteral    = &IntLiteralType{}
	StringLiteral = &StringLiteralType{}
)

func Uint(bits int) *IntType                  { return &IntType{Bits: bits} }
func Int(bits int) *IntType                   { return &IntType{Bits: bits, Signed: true} }
func FixedBytes(size int) *FixedBytesType     { return &FixedBytesType{Size: size} }
func NewArray(elem Type, size int) *ArrayType { return &ArrayType{Elem: elem, Size: size} }
func NewDynArray(elem Type) *ArrayType        { return &ArrayType{Elem: elem, Size: DynamicSize} }
func NewEnum(name string) *EnumType           { return &EnumType{Name: name} }
func NewContract(name string) *ContractType   { return &ContractType{Name: name} }

func NewStruct(name string, fields ...Field) *StructType {
	return &StructType{Name: name, Fields: fields}
}

// Equal reports structural equality
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}

// IsDynamicArray covers dynamic arrays and the byte/string sequences, which share their layout
func IsDynamicArray(t Type) bool {
	switch t := t.(type) {
	case *ArrayType:
		return t.IsDynamic()
	case *BytesType, *StringType:
		return true
	}
	return false
}

func IsReferenceType(t Type) bool {
	switch t.(type) {
	case *ArrayType, *StructType, *BytesType, *StringType:
		return true
	}
	return false
}

func IsStaticArrayOrStruct(t Type) bool {
	switch t := t.(type) {
	case *ArrayType:
		return !t.IsDynamic()
	case *StructType:
		return true
	}
	return false
}

// ElementType returns the element type of an array-like type, or nil.
// Byte and string sequences hold bytes1 elements.
func ElementType(t Type) Type {
	switch t := t.(type) {
	case *ArrayType:
		return t.Elem
	case *BytesType, *StringType:
		return Bytes1
	}
	return nil
}
