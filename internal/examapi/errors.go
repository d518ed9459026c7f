package examapi

import (
	"errors"
	"fmt"
)

// ErrEmptyExam is wrapped in a FetchError when an exam has no questions.
var ErrEmptyExam = errors.New("exam has no questions")

// FetchError reports a failed read from the exam API. Status is 0 when the
// request never got a response.
type FetchError struct {
	Op     string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SubmitError reports a failed exam submission. The session stays open and
// the user may try again.
type SubmitError struct {
	ExamID string
	Status int
	Err    error
}

func (e *SubmitError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("submit exam %s: status %d: %v", e.ExamID, e.Status, e.Err)
	}
	return fmt.Sprintf("submit exam %s: %v", e.ExamID, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// StatusError is the cause carried by Fetch/SubmitError for non-2xx replies.
type StatusError struct {
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return e.Status
	}
	return e.Status + ": " + e.Body
}
