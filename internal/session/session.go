// Package session holds the in-memory state machines of a practice session:
// memorize mode, where each question's answer can be revealed on the spot,
// and test mode, where the whole exam is submitted once and graded upstream.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/qknou/qknou-web/internal/exam"
)

var (
	ErrInvalidSession = errors.New("session: missing exam id")
	ErrNoQuestions    = errors.New("session: exam has no questions")
	ErrNoContext      = errors.New("session: nil session context")
	ErrNoSubmitter    = errors.New("session: nil submitter")
)

// ErrIncompleteGrading means the grading does not cover every submitted
// question. The exam stays in progress.
var ErrIncompleteGrading = errors.New("session: grading does not match submitted answers")

// Submitter grades a finished exam. It is implemented by the exam API client.
type Submitter interface {
	SubmitAnswers(ctx context.Context, examID string, req exam.SubmitRequest) (exam.SubmitResponse, error)
}

// SubmittedFunc observes a successful submission.
type SubmittedFunc func(ctx context.Context, examID string, req exam.SubmitRequest, resp exam.SubmitResponse, elapsed time.Duration)

type Option func(*options)

type options struct {
	now         func() time.Time
	onSubmitted SubmittedFunc
}

func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }
func WithSubmitHook(fn SubmittedFunc) Option  { return func(o *options) { o.onSubmitted = fn } }

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

func validate(examID string, set exam.QuestionSet) error {
	if strings.TrimSpace(examID) == "" {
		return ErrInvalidSession
	}
	if len(set.Questions) == 0 {
		return ErrNoQuestions
	}
	return nil
}

// offers reports whether v is one of q's choices. exam.NoChoice always is,
// since selecting it clears the slot.
func offers(q exam.Question, v exam.ChoiceNumber) bool {
	if v == exam.NoChoice {
		return true
	}
	for _, ch := range q.Choices {
		if ch.Number == v {
			return true
		}
	}
	return false
}
