package editing

import (
	"encoding/json"
	"testing"
)

func TestStack_PushUndoRedo(t *testing.T) {
	var s Stack[int]
	if _, ok := s.Current(); ok || s.CanUndo() || s.CanRedo() {
		t.Fatal("expected empty stack")
	}

	s = s.Push(1).Push(2).Push(3)
	if v, _ := s.Current(); v != 3 {
		t.Errorf("expected 3, got %d", v)
	}

	s = s.Undo()
	if v, _ := s.Current(); v != 2 || !s.CanRedo() {
		t.Errorf("expected 2 with redo available, got %d", v)
	}
	s = s.Undo().Undo()
	if _, ok := s.Current(); ok {
		t.Error("expected no current entry after undoing everything")
	}
	s = s.Undo()
	if s.CanUndo() {
		t.Error("undo on empty history must be a no-op")
	}

	s = s.Redo()
	if v, _ := s.Current(); v != 1 {
		t.Errorf("expected 1 after redo, got %d", v)
	}
	s = s.Redo().Redo()
	if v, _ := s.Current(); v != 3 || s.CanRedo() {
		t.Errorf("expected 3 with nothing to redo, got %d", v)
	}
}

func TestStack_PushClearsRedo(t *testing.T) {
	s := Stack[string]{}.Push("a").Push("b").Undo()
	s = s.Push("c")
	if s.CanRedo() {
		t.Error("expected redo branch to be discarded")
	}
	if s.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", s.Len())
	}
}

func TestStack_Immutable(t *testing.T) {
	base := Stack[int]{}.Push(1)
	a := base.Push(2)
	b := base.Push(3)
	if v, _ := a.Current(); v != 2 {
		t.Errorf("expected a to end in 2, got %d", v)
	}
	if v, _ := b.Current(); v != 3 {
		t.Errorf("expected b to end in 3, got %d", v)
	}
	if base.Len() != 1 {
		t.Errorf("expected base untouched, got %d entries", base.Len())
	}
	undone := a.Undo()
	if a.Len() != 2 || undone.Len() != 1 {
		t.Error("expected undo to leave the receiver untouched")
	}
}

func TestStack_Clear(t *testing.T) {
	s := Stack[int]{}.Push(1).Push(2).Undo().Clear()
	if s.CanUndo() || s.CanRedo() {
		t.Error("expected empty history")
	}
}

func TestStack_JSON(t *testing.T) {
	s := Stack[int]{}.Push(1).Push(2).Push(3).Undo()
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"undo":[1,2],"redo":[3]}` {
		t.Errorf("unexpected encoding %s", data)
	}
	var back Stack[int]
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back = back.Redo()
	if v, _ := back.Current(); v != 3 {
		t.Errorf("expected 3 after redo, got %d", v)
	}
}
