package session

import (
	"context"
	"errors"
	"sync"

	"github.com/qknou/qknou-web/internal/exam"
)

// twoQuestions mirrors a small past exam: two questions, choices 1 and 2,
// choice 2 correct for both.
func twoQuestions() exam.QuestionSet {
	return exam.QuestionSet{
		Exam: exam.Info{ID: 1, Subject: "Math", Title: "Mock Exam", TotalQuestions: 2, Year: 2023},
		Questions: []exam.Question{
			{
				ID: 101, Number: 1, Text: "1+1=?",
				Choices:        []exam.Choice{{ID: 1, Number: 1, Text: "1"}, {ID: 2, Number: 2, Text: "2"}},
				CorrectAnswers: []exam.ChoiceNumber{2},
				Explanation:    "1+1 is 2.",
			},
			{
				ID: 102, Number: 2, Text: "2+2=?",
				Choices:        []exam.Choice{{ID: 3, Number: 1, Text: "3"}, {ID: 4, Number: 2, Text: "4"}},
				CorrectAnswers: []exam.ChoiceNumber{2},
				Explanation:    "2+2 is 4.",
			},
		},
	}
}

// blindQuestions strips answers, like the without-answers variant.
func blindQuestions() exam.QuestionSet {
	set := twoQuestions()
	for i := range set.Questions {
		set.Questions[i].CorrectAnswers = nil
		set.Questions[i].Explanation = ""
	}
	return set
}

type fakeSubmitter struct {
	mu      sync.Mutex
	calls   int
	reqs    []exam.SubmitRequest
	resp    exam.SubmitResponse
	err     error
	started chan struct{} // receives one value per call when non-nil
	release chan struct{} // when non-nil, each call blocks until it is closed
}

func (f *fakeSubmitter) SubmitAnswers(_ context.Context, _ string, req exam.SubmitRequest) (exam.SubmitResponse, error) {
	f.mu.Lock()
	f.calls++
	f.reqs = append(f.reqs, req)
	started, release := f.started, f.release
	resp, err := f.resp, f.err
	f.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	return resp, err
}

func (f *fakeSubmitter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSubmitter) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

var errUpstream = errors.New("upstream 500")

func intp(v int) *int { return &v }

func gradedAllCorrect() exam.SubmitResponse {
	return exam.SubmitResponse{
		ExamID: "2023", TotalQuestions: 2, CorrectCount: 2, Score: 100,
		Results: []exam.QuestionResult{
			{QuestionID: 101, SelectedAnswer: intp(2), CorrectAnswers: []exam.ChoiceNumber{2}, IsCorrect: true},
			{QuestionID: 102, SelectedAnswer: intp(2), CorrectAnswers: []exam.ChoiceNumber{2}, IsCorrect: true},
		},
	}
}
