// Package types holds the canonical runtime types produced by resolving
// syntactic type signatures.
//
// Sizes are in machine words. Record types keep their fields sorted by name,
// which is the one canonical form used for equality and for layout.
package types

import (
	"fmt"
	"sort"
	"strings"
)

// Type is implemented by every canonical type.
type Type interface {
	// Size is the number of words a value of this type occupies on the stack.
	Size() int
	String() string
	isType()
}

// Basic is a primitive type.
type Basic int

const (
	Void Basic = iota
	Bool
	Int
	Char
)

func (Basic) isType() {}

func (b Basic) Size() int {
	if b == Void {
		return 0
	}
	return 1
}

func (b Basic) String() string {
	switch b {
	case Bool:
		return "Boolean"
	case Int:
		return "Integer"
	case Char:
		return "Char"
	default:
		return "Void"
	}
}

// Func is the type of a function or procedure. A procedure has Result Void.
// Parameter kinds are encoded in Params: *Ref for var parameters, *Func for
// callable parameters, anything else for value parameters.
type Func struct {
	Params []Type
	Result Type
}

func (*Func) isType() {}

// Size is the size of a closure: static link plus code address.
func (*Func) Size() int { return 2 }

func (f *Func) String() string {
	parts := make([]string, len(f.Params))
	for i, p := range f.Params {
		parts[i] = p.String()
	}
	if f.Result == Void {
		return fmt.Sprintf("proc(%s)", strings.Join(parts, ", "))
	}
	return fmt.Sprintf("func(%s) : %s", strings.Join(parts, ", "), f.Result)
}

// Array is a fixed-length array type.
type Array struct {
	Len  int
	Elem Type
}

func (*Array) isType() {}

func (a *Array) Size() int { return a.Len * a.Elem.Size() }

func (a *Array) String() string { return fmt.Sprintf("array %d of %s", a.Len, a.Elem) }

// Field is one named member of a record.
type Field struct {
	Name string
	Type Type
}

// Record is a record type in canonical form.
type Record struct {
	Fields []Field
}

// NewRecord returns the canonical record type for fields: a copy sorted by
// field name. Duplicate names are the caller's problem.
func NewRecord(fields []Field) *Record {
	out := make([]Field, len(fields))
	copy(out, fields)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return &Record{Fields: out}
}

func (*Record) isType() {}

func (r *Record) Size() int {
	n := 0
	for _, f := range r.Fields {
		n += f.Type.Size()
	}
	return n
}

func (r *Record) String() string {
	parts := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		parts[i] = fmt.Sprintf("%s : %s", f.Name, f.Type)
	}
	return fmt.Sprintf("record %s end", strings.Join(parts, ", "))
}

// Field returns the named field and its word offset within the record.
func (r *Record) Field(name string) (Field, int, bool) {
	off := 0
	for _, f := range r.Fields {
		if f.Name == name {
			return f, off, true
		}
		off += f.Type.Size()
	}
	return Field{}, 0, false
}

// Ref marks a mutable reference to a value of type Inner, i.e. a var
// parameter or a component reached through one.
type Ref struct {
	Inner Type
}

func (*Ref) isType() {}

// Size is one word: a reference is held as an address.
func (*Ref) Size() int { return 1 }

func (r *Ref) String() string { return "var " + r.Inner.String() }

// RefOf wraps t in a reference. It never wraps a reference twice.
func RefOf(t Type) Type {
	if r, ok := t.(*Ref); ok {
		return r
	}
	return &Ref{Inner: t}
}

// Deref strips a top-level reference.
func Deref(t Type) Type {
	if r, ok := t.(*Ref); ok {
		return r.Inner
	}
	return t
}

// IsRef reports whether t is a reference.
func IsRef(t Type) bool {
	_, ok := t.(*Ref)
	return ok
}

// Identical reports strict structural identity, references included. It is
// used for callable signatures, where a var parameter differs from a value
// parameter.
func Identical(a, b Type) bool {
	switch x := a.(type) {
	case Basic:
		y, ok := b.(Basic)
		return ok && x == y
	case *Ref:
		y, ok := b.(*Ref)
		return ok && Identical(x.Inner, y.Inner)
	case *Array:
		y, ok := b.(*Array)
		return ok && x.Len == y.Len && Identical(x.Elem, y.Elem)
	case *Record:
		y, ok := b.(*Record)
		if !ok || len(x.Fields) != len(y.Fields) {
			return false
		}
		for i := range x.Fields {
			if x.Fields[i].Name != y.Fields[i].Name || !Identical(x.Fields[i].Type, y.Fields[i].Type) {
				return false
			}
		}
		return true
	case *Func:
		y, ok := b.(*Func)
		if !ok || len(x.Params) != len(y.Params) || !Identical(x.Result, y.Result) {
			return false
		}
		for i := range x.Params {
			if !Identical(x.Params[i], y.Params[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Equal compares value types: a top-level reference is transparent, so a var
// parameter of type Integer is Equal to Integer.
func Equal(a, b Type) bool {
	return Identical(Deref(a), Deref(b))
}

// IsFunc reports whether t is a callable type.
func IsFunc(t Type) bool {
	_, ok := Deref(t).(*Func)
	return ok
}
