// Package diag holds the recoverable, positioned semantic errors collected
// while analyzing and optimizing a program.
package diag

import (
	"fmt"
	"strings"

	"tamc/pkg/ast"
)

// Kind classifies a semantic error.
type Kind int

const (
	UndeclaredUse Kind = iota
	TypeMismatch
	ArityMismatch
	AssignToConstant
	DuplicateRecordField
	DuplicateRecordTypeField
	DuplicateParameter
	DuplicateDeclaration
	FunctionAsValue
	IntegerTooLarge
	InvalidArgumentKind
	NotCallable
	NotAnArray
	NotARecord
	UnknownField
	NotAVariable
	EmptyArray
	NotAType

	// Internal marks a fault in the analyzer itself rather than in the
	// program.
	Internal
)

var kindNames = [...]string{
	UndeclaredUse:            "undeclared use",
	TypeMismatch:             "type mismatch",
	ArityMismatch:            "arity mismatch",
	AssignToConstant:         "assignment to constant",
	DuplicateRecordField:     "duplicate record field",
	DuplicateRecordTypeField: "duplicate record type field",
	DuplicateParameter:       "duplicate parameter",
	DuplicateDeclaration:     "duplicate declaration",
	FunctionAsValue:          "function used as value",
	IntegerTooLarge:          "integer too large",
	InvalidArgumentKind:      "invalid argument kind",
	NotCallable:              "not callable",
	NotAnArray:               "not an array",
	NotARecord:               "not a record",
	UnknownField:             "unknown field",
	NotAVariable:             "not a variable",
	EmptyArray:               "empty array",
	NotAType:                 "not a type",
	Internal:                 "internal error",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is one semantic error.
type Error struct {
	Kind    Kind
	Message string
	Pos     ast.Pos
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}

// Errorf builds an error positioned at node.
func Errorf(node ast.Node, kind Kind, format string, args ...any) *Error {
	e := &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
	if node != nil {
		e.Pos = node.Position()
	}
	return e
}

// ErrorList is an ordered list of semantic errors. A non-empty list
// suppresses code generation.
type ErrorList []*Error

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d errors:", len(l))
	for _, e := range l {
		sb.WriteString("\n  ")
		sb.WriteString(e.Error())
	}
	return sb.String()
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (l ErrorList) Unwrap() []error {
	out := make([]error, len(l))
	for i, e := range l {
		out[i] = e
	}
	return out
}

// Err returns l as an error, or nil when l is empty.
func (l ErrorList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// Has reports whether l contains an error of the given kind.
func (l ErrorList) Has(kind Kind) bool {
	for _, e := range l {
		if e.Kind == kind {
			return true
		}
	}
	return false
}
