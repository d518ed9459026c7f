package session

import (
	"testing"

	"github.com/qknou/qknou-web/internal/exam"
)

func TestAnswerStore_SelectClearCount(t *testing.T) {
	s := NewAnswerStore(3)
	var pushed []int
	s.OnChange(func(n int) { pushed = append(pushed, n) })

	if got := s.UnansweredCount(); got != 3 {
		t.Fatalf("expected 3 unanswered, got %d", got)
	}
	s.Select(0, 2)
	s.Select(2, 1)
	s.Select(0, 4) // overwrite keeps one distinct position
	if got := s.UnansweredCount(); got != 1 {
		t.Fatalf("expected 1 unanswered, got %d", got)
	}
	if got := s.Get(0); got != 4 {
		t.Fatalf("expected 4 at position 0, got %d", got)
	}
	s.Clear(2)
	if s.Answered(2) {
		t.Fatalf("expected position 2 cleared")
	}
	want := []int{2, 1, 1, 2}
	if len(pushed) != len(want) {
		t.Fatalf("expected %d change notifications, got %v", len(want), pushed)
	}
	for i := range want {
		if pushed[i] != want[i] {
			t.Fatalf("notification %d: want %d got %d", i, want[i], pushed[i])
		}
	}
}

func TestAnswerStore_NoChoiceIsUnanswered(t *testing.T) {
	s := NewAnswerStore(2)
	s.Select(1, 3)
	s.Select(1, exam.NoChoice)
	if s.Answered(1) {
		t.Fatalf("selecting NoChoice must clear the slot")
	}
	if got := s.UnansweredCount(); got != 2 {
		t.Fatalf("expected 2 unanswered, got %d", got)
	}
	if got := s.Get(5); got != exam.NoChoice {
		t.Fatalf("absent position must read as NoChoice, got %d", got)
	}
}

func TestAnswerStore_RejectsOutOfRange(t *testing.T) {
	s := NewAnswerStore(2)
	if s.Select(-1, 1) || s.Select(2, 1) {
		t.Fatalf("out-of-range select must be rejected")
	}
	if got := s.AnsweredCount(); got != 0 {
		t.Fatalf("expected nothing stored, got %d", got)
	}
	s.Clear(7) // no panic, no notification
}
