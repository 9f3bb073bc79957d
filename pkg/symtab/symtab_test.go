package symtab

import (
	"errors"
	"strings"
	"testing"
)

func TestTable(t *testing.T) {
	t.Run("Shadowing", func(t *testing.T) {
		tab := New[int](0)
		tab.Add("x", 1)
		tab.EnterScope(0)
		tab.Add("x", 2)

		if v, err := tab.Lookup("x"); err != nil || v != 2 {
			t.Errorf("inner x: expected 2, got %d (err %v)", v, err)
		}
		tab.ExitScope()
		if v, err := tab.Lookup("x"); err != nil || v != 1 {
			t.Errorf("outer x: expected 1, got %d (err %v)", v, err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		tab := New[int](0)
		_, err := tab.Lookup("missing")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if !strings.Contains(err.Error(), `"missing"`) {
			t.Errorf("error should name the identifier: %v", err)
		}
	})

	t.Run("DepthCountsFramesNotBlocks", func(t *testing.T) {
		tab := New[string](0)
		tab.Add("g", "global")
		tab.EnterScope(3)
		tab.Add("p", "param")
		tab.EnterBlock()
		tab.Add("l", "local")
		tab.EnterScope(3)
		tab.EnterBlock()

		cases := []struct {
			name  string
			depth int
		}{
			{"l", 1},
			{"p", 1},
			{"g", 2},
		}
		for _, c := range cases {
			_, depth, err := tab.LookupWithDepth(c.name)
			if err != nil {
				t.Fatalf("%s: %v", c.name, err)
			}
			if depth != c.depth {
				t.Errorf("%s: expected depth %d, got %d", c.name, c.depth, depth)
			}
		}
		if got := tab.Levels(); got != 3 {
			t.Errorf("levels: expected 3, got %d", got)
		}
	})

	t.Run("ScopeLocalState", func(t *testing.T) {
		tab := New[int](0)
		tab.SetScopeLocalState(5)
		tab.EnterBlock()
		if got := tab.ScopeLocalState(); got != 5 {
			t.Errorf("block should inherit state 5, got %d", got)
		}
		tab.SetScopeLocalState(9)
		tab.ExitScope()
		if got := tab.ScopeLocalState(); got != 5 {
			t.Errorf("enclosing state should stay 5, got %d", got)
		}
		tab.EnterScope(3)
		if got := tab.ScopeLocalState(); got != 3 {
			t.Errorf("frame should start at 3, got %d", got)
		}
	})

	t.Run("ConstFlag", func(t *testing.T) {
		tab := New[int](0)
		tab.AddConst("k", 1)
		tab.Add("v", 2)
		if !tab.IsConst("k") {
			t.Errorf("k should be const")
		}
		if tab.IsConst("v") {
			t.Errorf("v should not be const")
		}
		tab.EnterScope(0)
		tab.Add("k", 3)
		if tab.IsConst("k") {
			t.Errorf("shadowing k with a variable should hide constancy")
		}
	})

	t.Run("DeclaredHere", func(t *testing.T) {
		tab := New[int](0)
		tab.Add("a", 1)
		tab.EnterBlock()
		if tab.DeclaredHere("a") {
			t.Errorf("a belongs to the enclosing scope")
		}
		tab.Add("b", 2)
		if !tab.DeclaredHere("b") {
			t.Errorf("b was declared in the innermost scope")
		}
	})

	t.Run("SnapshotRestore", func(t *testing.T) {
		tab := New[int](0)
		tab.Add("a", 1)
		snap := tab.Snapshot()
		tab.Add("a", 2)
		tab.EnterScope(0)
		tab.Add("b", 3)
		tab.Restore(snap)

		if v, _ := tab.Lookup("a"); v != 1 {
			t.Errorf("a after restore: expected 1, got %d", v)
		}
		if _, err := tab.Lookup("b"); err == nil {
			t.Errorf("b should be gone after restore")
		}
	})

	t.Run("OutermostNeverPopped", func(t *testing.T) {
		tab := New[int](0)
		tab.Add("a", 1)
		tab.ExitScope()
		if _, err := tab.Lookup("a"); err != nil {
			t.Errorf("outermost scope was popped: %v", err)
		}
	})
}

func TestTable_String(t *testing.T) {
	tab := New[int](0)
	tab.Add("b", 2)
	tab.AddConst("a", 1)
	out := tab.String()
	if strings.Index(out, "a ") > strings.Index(out, "b ") {
		t.Errorf("names should be sorted:\n%s", out)
	}
	if !strings.Contains(out, "(const)") {
		t.Errorf("const flag missing:\n%s", out)
	}
}
