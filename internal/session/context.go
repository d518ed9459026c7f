package session

import (
	"context"
	"sync"
)

// ExamEndFunc ends the active exam. It must be idempotent: the timer and the
// user may both call it, in any order.
type ExamEndFunc func(ctx context.Context) error

// ContextState is a snapshot of the shared session channel.
type ContextState struct {
	UnansweredCount int  `json:"unansweredCount"`
	TotalQuestions  int  `json:"totalQuestions"`
	IsSubmitted     bool `json:"isSubmitted"`
	IsExamMode      bool `json:"isExamMode"`
	HasHandler      bool `json:"hasHandler"`
}

// NeedsConfirmation reports whether ending the exam should first ask the user
// because some questions are still unanswered.
func (s ContextState) NeedsConfirmation() bool { return s.UnansweredCount > 0 }

// Context carries the exam-end trigger and progress counters between the
// timer/header side of a tab and the mounted test controller. It is passed to
// both explicitly and is safe for concurrent use.
type Context struct {
	mu         sync.RWMutex
	onExamEnd  ExamEndFunc
	unanswered int
	total      int
	submitted  bool
	examMode   bool
}

func NewContext() *Context { return &Context{} }

// RegisterExamEndHandler replaces the active handler. nil unregisters.
func (c *Context) RegisterExamEndHandler(fn ExamEndFunc) {
	c.mu.Lock()
	c.onExamEnd = fn
	c.mu.Unlock()
}

// TriggerExamEnd runs the active handler, if any. The lock is not held while
// the handler runs.
func (c *Context) TriggerExamEnd(ctx context.Context) error {
	c.mu.RLock()
	fn := c.onExamEnd
	c.mu.RUnlock()
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (c *Context) ReportUnansweredCount(n int) {
	c.mu.Lock()
	c.unanswered = n
	c.mu.Unlock()
}

func (c *Context) ReportTotalQuestions(n int) {
	c.mu.Lock()
	c.total = n
	c.mu.Unlock()
}

func (c *Context) ReportSubmitted(b bool) {
	c.mu.Lock()
	c.submitted = b
	c.mu.Unlock()
}

func (c *Context) SetExamMode(b bool) {
	c.mu.Lock()
	c.examMode = b
	c.mu.Unlock()
}

func (c *Context) Snapshot() ContextState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ContextState{
		UnansweredCount: c.unanswered,
		TotalQuestions:  c.total,
		IsSubmitted:     c.submitted,
		IsExamMode:      c.examMode,
		HasHandler:      c.onExamEnd != nil,
	}
}
