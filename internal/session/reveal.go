package session

import "github.com/qknou/qknou-web/internal/exam"

// RevealRecord is what memorize mode remembers about a question the user
// navigated away from.
type RevealRecord struct {
	Revealed       bool              `json:"revealed"`
	SelectedAnswer exam.ChoiceNumber `json:"selectedAnswer"`
}

// RevealRecords is keyed by question id, not position.
type RevealRecords struct {
	m map[int64]RevealRecord
}

func NewRevealRecords() *RevealRecords {
	return &RevealRecords{m: map[int64]RevealRecord{}}
}

func (r *RevealRecords) Remember(questionID int64, rec RevealRecord) {
	r.m[questionID] = rec
}

func (r *RevealRecords) Lookup(questionID int64) (RevealRecord, bool) {
	rec, ok := r.m[questionID]
	return rec, ok
}

func (r *RevealRecords) Forget(questionID int64) {
	delete(r.m, questionID)
}

func (r *RevealRecords) Len() int { return len(r.m) }

// ChoiceMark is how a choice is highlighted once a question is revealed.
type ChoiceMark string

const (
	MarkNeutral   ChoiceMark = "neutral"
	MarkCorrect   ChoiceMark = "correct"
	MarkIncorrect ChoiceMark = "incorrect"
)

// ClassifyChoice marks choice against the correct set. Every member of the
// set is correct; the selected choice is incorrect when it is not a member.
func ClassifyChoice(choice, selected exam.ChoiceNumber, correct []exam.ChoiceNumber) ChoiceMark {
	for _, c := range correct {
		if c == choice {
			return MarkCorrect
		}
	}
	if choice == selected && selected != exam.NoChoice {
		return MarkIncorrect
	}
	return MarkNeutral
}

// QuestionState is the navigator badge of a question in test mode.
type QuestionState string

const (
	StateDefault   QuestionState = "default"
	StateAnswered  QuestionState = "answered"
	StateCorrect   QuestionState = "correct"
	StateIncorrect QuestionState = "incorrect"
	StateSkipped   QuestionState = "skipped"
)

// ResultState derives the post-submission state from a graded result.
func ResultState(r exam.QuestionResult) QuestionState {
	switch {
	case r.IsCorrect:
		return StateCorrect
	case r.SelectedAnswer != nil:
		return StateIncorrect
	default:
		return StateSkipped
	}
}
