// Package symtab is a generic nested-scope environment mapping names to
// values, used independently for types, terms, locals and callables.
//
// Scopes are either frames, which start a new static nesting level, or
// blocks, which nest a namespace inside the current level. Depths reported by
// LookupWithDepth count frames only, so they select display registers
// directly.
package symtab

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"src.elv.sh/pkg/persistent/hash"
	"src.elv.sh/pkg/persistent/hashmap"
	"src.elv.sh/pkg/persistent/vector"
)

// ErrNotFound is returned (wrapped with the name) when a name is unbound in
// every visible scope.
var ErrNotFound = errors.New("not found")

type entry[V any] struct {
	value   V
	isConst bool
}

type scope struct {
	names hashmap.Map
	state int
	block bool
}

func equalNames(a, b any) bool { return a.(string) == b.(string) }
func hashName(k any) uint32    { return hash.String(k.(string)) }

func newScope(state int, block bool) scope {
	return scope{names: hashmap.New(equalNames, hashName), state: state, block: block}
}

// Table is a stack of scopes. The zero value is not usable; call New.
type Table[V any] struct {
	scopes vector.Vector
}

// New returns a table holding one outermost frame with the given scope-local
// state.
func New[V any](state int) *Table[V] {
	return &Table[V]{scopes: vector.Empty.Conj(newScope(state, false))}
}

func (t *Table[V]) top() scope {
	s, _ := t.scopes.Index(t.scopes.Len() - 1)
	return s.(scope)
}

func (t *Table[V]) setTop(s scope) {
	t.scopes = t.scopes.Assoc(t.scopes.Len()-1, s)
}

// EnterScope opens a new frame with the given initial scope-local state.
func (t *Table[V]) EnterScope(state int) {
	t.scopes = t.scopes.Conj(newScope(state, false))
}

// EnterBlock opens a nested namespace in the current frame. Its scope-local
// state starts from the enclosing scope's.
func (t *Table[V]) EnterBlock() {
	t.scopes = t.scopes.Conj(newScope(t.top().state, true))
}

// ExitScope closes the innermost frame or block. The outermost frame is never
// closed.
func (t *Table[V]) ExitScope() {
	if t.scopes.Len() > 1 {
		t.scopes = t.scopes.Pop()
	}
}

// Add binds name to v in the innermost scope, replacing any binding already
// there.
func (t *Table[V]) Add(name string, v V) {
	t.add(name, v, false)
}

// AddConst binds name to v in the innermost scope and marks it constant.
func (t *Table[V]) AddConst(name string, v V) {
	t.add(name, v, true)
}

func (t *Table[V]) add(name string, v V, isConst bool) {
	s := t.top()
	s.names = s.names.Assoc(name, entry[V]{value: v, isConst: isConst})
	t.setTop(s)
}

func (t *Table[V]) find(name string) (entry[V], int, bool) {
	depth := 0
	for i := t.scopes.Len() - 1; i >= 0; i-- {
		raw, _ := t.scopes.Index(i)
		s := raw.(scope)
		if e, ok := s.names.Index(name); ok {
			return e.(entry[V]), depth, true
		}
		if !s.block {
			depth++
		}
	}
	return entry[V]{}, 0, false
}

// Lookup returns the value bound to name in the nearest enclosing scope.
func (t *Table[V]) Lookup(name string) (V, error) {
	v, _, err := t.LookupWithDepth(name)
	return v, err
}

// LookupWithDepth is Lookup that also reports how many frames lie between the
// innermost scope and the one declaring name: 0 for the current frame.
func (t *Table[V]) LookupWithDepth(name string) (V, int, error) {
	e, depth, ok := t.find(name)
	if !ok {
		var zero V
		return zero, 0, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return e.value, depth, nil
}

// IsConst reports whether the visible binding of name was added with AddConst.
func (t *Table[V]) IsConst(name string) bool {
	e, _, ok := t.find(name)
	return ok && e.isConst
}

// DeclaredHere reports whether name is bound in the innermost scope itself.
func (t *Table[V]) DeclaredHere(name string) bool {
	_, ok := t.top().names.Index(name)
	return ok
}

// Levels returns the number of open frames, the outermost included.
func (t *Table[V]) Levels() int {
	n := 0
	for i := 0; i < t.scopes.Len(); i++ {
		raw, _ := t.scopes.Index(i)
		if !raw.(scope).block {
			n++
		}
	}
	return n
}

// ScopeLocalState returns the innermost scope's counter.
func (t *Table[V]) ScopeLocalState() int { return t.top().state }

// SetScopeLocalState replaces the innermost scope's counter.
func (t *Table[V]) SetScopeLocalState(n int) {
	s := t.top()
	s.state = n
	t.setTop(s)
}

// Snapshot captures the whole table. Scopes are persistent, so this is O(1)
// and later changes to t do not affect the snapshot.
type Snapshot struct {
	scopes vector.Vector
}

// Snapshot returns the current state of the table.
func (t *Table[V]) Snapshot() Snapshot { return Snapshot{scopes: t.scopes} }

// Restore rolls the table back to s.
func (t *Table[V]) Restore(s Snapshot) { t.scopes = s.scopes }

// String returns a deterministically ordered dump of the table, innermost
// scope last.
func (t *Table[V]) String() string {
	var sb strings.Builder
	for i := 0; i < t.scopes.Len(); i++ {
		raw, _ := t.scopes.Index(i)
		s := raw.(scope)
		kind := "frame"
		if s.block {
			kind = "block"
		}
		fmt.Fprintf(&sb, "Scope %d (%s, state %d):\n", i, kind, s.state)
		var names []string
		for it := s.names.Iterator(); it.HasElem(); it.Next() {
			k, _ := it.Elem()
			names = append(names, k.(string))
		}
		sort.Strings(names)
		for _, name := range names {
			raw, _ := s.names.Index(name)
			e := raw.(entry[V])
			flag := ""
			if e.isConst {
				flag = " (const)"
			}
			fmt.Fprintf(&sb, "  %-20s %v%s\n", name, e.value, flag)
		}
	}
	return sb.String()
}
