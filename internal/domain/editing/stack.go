package editing

import "encoding/json"

// Stack is a linear undo/redo history. It is immutable: every operation
// returns a new stack and leaves the receiver untouched.
type Stack[T any] struct {
	undo []T
	redo []T
}

// Push records v as the current entry and discards the redo branch.
func (s Stack[T]) Push(v T) Stack[T] {
	undo := make([]T, len(s.undo), len(s.undo)+1)
	copy(undo, s.undo)
	return Stack[T]{undo: append(undo, v)}
}

// Undo moves the current entry onto the redo side. It is a no-op on an empty
// history.
func (s Stack[T]) Undo() Stack[T] {
	if len(s.undo) == 0 {
		return s
	}
	last := s.undo[len(s.undo)-1]
	return Stack[T]{
		undo: append([]T(nil), s.undo[:len(s.undo)-1]...),
		redo: append(append([]T(nil), s.redo...), last),
	}
}

// Redo moves the most recently undone entry back. It is a no-op when nothing
// was undone.
func (s Stack[T]) Redo() Stack[T] {
	if len(s.redo) == 0 {
		return s
	}
	last := s.redo[len(s.redo)-1]
	return Stack[T]{
		undo: append(append([]T(nil), s.undo...), last),
		redo: append([]T(nil), s.redo[:len(s.redo)-1]...),
	}
}

// Clear returns an empty history.
func (s Stack[T]) Clear() Stack[T] {
	return Stack[T]{}
}

// Current returns the latest entry, if any.
func (s Stack[T]) Current() (T, bool) {
	if len(s.undo) == 0 {
		var zero T
		return zero, false
	}
	return s.undo[len(s.undo)-1], true
}

func (s Stack[T]) CanUndo() bool { return len(s.undo) > 0 }
func (s Stack[T]) CanRedo() bool { return len(s.redo) > 0 }

// Len returns the number of entries that can be undone.
func (s Stack[T]) Len() int { return len(s.undo) }

type stackJSON[T any] struct {
	Undo []T `json:"undo"`
	Redo []T `json:"redo"`
}

func (s Stack[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(stackJSON[T]{Undo: s.undo, Redo: s.redo})
}

func (s *Stack[T]) UnmarshalJSON(data []byte) error {
	var raw stackJSON[T]
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Stack[T]{undo: raw.Undo, redo: raw.Redo}
	return nil
}
