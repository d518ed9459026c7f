package session

import "github.com/qknou/qknou-web/internal/exam"

// AnswerStore maps question positions to the selected choice. A missing key
// and exam.NoChoice both mean "unanswered".
//
// AnswerStore is not safe for concurrent use; it is owned by one controller,
// which serializes access.
type AnswerStore struct {
	total    int
	answers  map[int]exam.ChoiceNumber
	onChange func(unanswered int)
}

func NewAnswerStore(total int) *AnswerStore {
	if total < 0 {
		total = 0
	}
	return &AnswerStore{total: total, answers: make(map[int]exam.ChoiceNumber, total)}
}

// OnChange sets the listener called after every mutation with the new
// unanswered count.
func (s *AnswerStore) OnChange(fn func(unanswered int)) { s.onChange = fn }

// Select records v at pos. Selecting exam.NoChoice clears the slot.
// Positions outside [0,total) are rejected.
func (s *AnswerStore) Select(pos int, v exam.ChoiceNumber) bool {
	if !s.inRange(pos) {
		return false
	}
	if v == exam.NoChoice {
		delete(s.answers, pos)
	} else {
		s.answers[pos] = v
	}
	s.notify()
	return true
}

func (s *AnswerStore) Get(pos int) exam.ChoiceNumber {
	return s.answers[pos]
}

func (s *AnswerStore) Answered(pos int) bool {
	return s.answers[pos] != exam.NoChoice
}

func (s *AnswerStore) Clear(pos int) {
	if _, ok := s.answers[pos]; !ok {
		return
	}
	delete(s.answers, pos)
	s.notify()
}

// AnsweredCount is the number of distinct positions holding a selection.
func (s *AnswerStore) AnsweredCount() int {
	n := 0
	for _, v := range s.answers {
		if v != exam.NoChoice {
			n++
		}
	}
	return n
}

func (s *AnswerStore) UnansweredCount() int {
	return s.total - s.AnsweredCount()
}

func (s *AnswerStore) Total() int { return s.total }

func (s *AnswerStore) inRange(pos int) bool {
	return pos >= 0 && pos < s.total
}

func (s *AnswerStore) notify() {
	if s.onChange != nil {
		s.onChange(s.UnansweredCount())
	}
}
