// Package astjson reads and writes the tree handed over by the parser as
// tagged JSON. Every node is an object whose "kind" member names its Go type:
//
//	{"kind": "BinaryOp", "op": "+", "left": {"kind": "Ident", "name": "x"},
//	 "right": {"kind": "IntLit", "int": 1}}
//
// The root is {"kind": "Program", "body": ...}. Positions are optional
// "line" and "column" members.
package astjson

import (
	"bytes"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"tamc/pkg/ast"
)

// node is the wire form of every tree node. Which members are meaningful
// depends on Kind.
type node struct {
	Kind   string `json:"kind"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`

	Name string `json:"name,omitempty"`
	Op   string `json:"op,omitempty"`

	Int  *int   `json:"int,omitempty"`
	Char string `json:"char,omitempty"`
	Bool *bool  `json:"bool,omitempty"`
	Len  *int   `json:"len,omitempty"`

	Operand *node `json:"operand,omitempty"`
	Left    *node `json:"left,omitempty"`
	Right   *node `json:"right,omitempty"`
	Array   *node `json:"array,omitempty"`
	Index   *node `json:"index,omitempty"`
	Record  *node `json:"record,omitempty"`
	Target  *node `json:"target,omitempty"`
	Value   *node `json:"value,omitempty"`
	Cond    *node `json:"cond,omitempty"`
	Then    *node `json:"then,omitempty"`
	Else    *node `json:"else,omitempty"`
	Pre     *node `json:"pre,omitempty"`
	Post    *node `json:"post,omitempty"`
	Body    *node `json:"body,omitempty"`
	Sig     *node `json:"sig,omitempty"`
	Result  *node `json:"result,omitempty"`
	Elem    *node `json:"elem,omitempty"`

	Args   []*node `json:"args,omitempty"`
	Elems  []*node `json:"elems,omitempty"`
	Stmts  []*node `json:"stmts,omitempty"`
	Decls  []*node `json:"decls,omitempty"`
	Params []*node `json:"params,omitempty"`
	Fields []field `json:"fields,omitempty"`
}

// field is a record literal member ({name, value}) or a record signature
// member ({name, type}).
type field struct {
	Name  string `json:"name"`
	Value *node  `json:"value,omitempty"`
	Type  *node  `json:"type,omitempty"`
}

// Decode parses a JSON-encoded program.
func Decode(data []byte) (*ast.Program, error) {
	var root node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("unmarshal program: %w", err)
	}
	return program(&root)
}

// Read decodes a program from r.
func Read(r io.Reader) (*ast.Program, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read program: %w", err)
	}
	return Decode(data)
}

// Encode renders prog as indented JSON. Annotations other than positions are
// not written.
func Encode(prog *ast.Program) ([]byte, error) {
	if prog == nil || prog.Body == nil {
		return nil, fmt.Errorf("%w: empty program", ErrMissing)
	}
	root := &node{Kind: "Program", Body: encode(prog.Body)}
	data, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("marshal program: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, fmt.Errorf("indent program: %w", err)
	}
	return buf.Bytes(), nil
}
