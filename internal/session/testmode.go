package session

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/qknou/qknou-web/internal/exam"
)

// TestController runs a blind, timed exam: answers stay hidden until the whole
// exam is submitted, after which the upstream grading is shown.
//
// Status moves one way, in_progress -> submitted.
type TestController struct {
	mu        sync.Mutex
	examID    string
	info      exam.Info
	questions []exam.Question
	answers   *AnswerStore
	cursor    *Cursor
	sctx      *Context
	submitter Submitter
	opts      options
	flight    singleflight.Group

	startedAt  time.Time
	submitting bool
	submitted  bool
	closed     bool
	response   exam.SubmitResponse
	results    map[int64]exam.QuestionResult
	elapsed    time.Duration
}

func NewTestController(examID string, set exam.QuestionSet, sub Submitter, sctx *Context, opts ...Option) (*TestController, error) {
	if err := validate(examID, set); err != nil {
		return nil, err
	}
	if sctx == nil {
		return nil, ErrNoContext
	}
	if sub == nil {
		return nil, ErrNoSubmitter
	}
	o := buildOptions(opts)
	c := &TestController{
		examID:    examID,
		info:      set.Exam,
		questions: set.Questions,
		answers:   NewAnswerStore(len(set.Questions)),
		cursor:    NewCursor(len(set.Questions)),
		sctx:      sctx,
		submitter: sub,
		opts:      o,
		startedAt: o.now(),
	}
	c.answers.OnChange(func(unanswered int) {
		if !c.closed {
			c.sctx.ReportUnansweredCount(unanswered)
		}
	})
	return c, nil
}

// Mount publishes the controller on the session context: exam mode on,
// counters reported, and EndExam registered as the exam-end handler.
func (c *TestController) Mount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.sctx.SetExamMode(true)
	c.sctx.ReportTotalQuestions(len(c.questions))
	c.sctx.ReportUnansweredCount(c.answers.UnansweredCount())
	c.sctx.ReportSubmitted(c.submitted)
	c.sctx.RegisterExamEndHandler(c.EndExam)
}

// Unmount tears the controller down. A submission still in flight is dropped
// when it returns.
func (c *TestController) Unmount() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.sctx.RegisterExamEndHandler(nil)
	c.sctx.ReportSubmitted(false)
	c.sctx.SetExamMode(false)
}

func (c *TestController) ExamID() string { return c.examID }

// SelectAnswer records v for the current question. It is ignored once the
// exam was submitted, while the submission is in flight, and for a choice
// the question does not have.
func (c *TestController) SelectAnswer(v exam.ChoiceNumber) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.cursor.Index()
	if c.submitted || c.submitting || c.closed || !offers(c.questions[i], v) {
		return false
	}
	return c.answers.Select(i, v)
}

func (c *TestController) Next() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor.Next()
}

func (c *TestController) Prev() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor.Prev()
}

// JumpTo moves to the 1-based question number n, clamped.
func (c *TestController) JumpTo(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursor.JumpTo(n)
}

func (c *TestController) Submitted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitted
}

// Payload builds the submission request from the current answers, in
// question order.
func (c *TestController) Payload() exam.SubmitRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payloadLocked()
}

func (c *TestController) payloadLocked() exam.SubmitRequest {
	req := exam.SubmitRequest{Answers: make([]exam.Answer, 0, len(c.questions))}
	for i, q := range c.questions {
		req.Answers = append(req.Answers, exam.Answer{
			QuestionID:     q.ID,
			SelectedAnswer: exam.NullableChoice(c.answers.Get(i)),
		})
	}
	return req
}

// EndExam submits the exam. Concurrent calls share one submit call; calls
// after a successful submission are no-ops. On failure the exam stays in
// progress and EndExam may be called again.
func (c *TestController) EndExam(ctx context.Context) error {
	_, err, _ := c.flight.Do("submit", func() (interface{}, error) {
		return nil, c.submit(context.WithoutCancel(ctx))
	})
	return err
}

func (c *TestController) submit(ctx context.Context) error {
	c.mu.Lock()
	if c.submitted || c.closed {
		c.mu.Unlock()
		return nil
	}
	req := c.payloadLocked()
	c.submitting = true
	c.mu.Unlock()

	resp, err := c.submitter.SubmitAnswers(ctx, c.examID, req)

	c.mu.Lock()
	c.submitting = false
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("submit exam %s: %w", c.examID, err)
	}
	if !gradingCovers(req, resp) {
		c.mu.Unlock()
		return fmt.Errorf("submit exam %s: %w (%d results for %d answers)",
			c.examID, ErrIncompleteGrading, len(resp.Results), len(req.Answers))
	}
	c.response = resp
	c.results = make(map[int64]exam.QuestionResult, len(resp.Results))
	for _, r := range resp.Results {
		c.results[r.QuestionID] = r
	}
	c.submitted = true
	c.cursor.Reset()
	c.elapsed = c.opts.now().Sub(c.startedAt)
	elapsed := c.elapsed
	c.sctx.ReportSubmitted(true)
	c.mu.Unlock()

	if c.opts.onSubmitted != nil {
		c.opts.onSubmitted(ctx, c.examID, req, resp, elapsed)
	}
	return nil
}

// gradingCovers reports whether resp holds exactly one result per submitted
// question.
func gradingCovers(req exam.SubmitRequest, resp exam.SubmitResponse) bool {
	if len(resp.Results) != len(req.Answers) {
		return false
	}
	seen := make(map[int64]bool, len(resp.Results))
	for _, r := range resp.Results {
		seen[r.QuestionID] = true
	}
	for _, a := range req.Answers {
		if !seen[a.QuestionID] {
			return false
		}
	}
	return true
}

// QuestionStates returns the navigator state of every question, by position.
func (c *TestController) QuestionStates() []QuestionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statesLocked()
}

func (c *TestController) statesLocked() []QuestionState {
	out := make([]QuestionState, len(c.questions))
	for i, q := range c.questions {
		switch {
		case c.submitted:
			if r, ok := c.results[q.ID]; ok {
				out[i] = ResultState(r)
			} else {
				out[i] = StateDefault
			}
		case c.answers.Answered(i):
			out[i] = StateAnswered
		default:
			out[i] = StateDefault
		}
	}
	return out
}

// Stats summarizes a graded exam.
type Stats struct {
	Correct        int     `json:"correct"`
	Wrong          int     `json:"wrong"`
	RatePercent    int     `json:"ratePercent"`
	Score          float64 `json:"score"`
	ElapsedSeconds int     `json:"elapsedSeconds"`
	ElapsedText    string  `json:"elapsedText"`
}

type TestView struct {
	ExamID     string               `json:"examId"`
	Exam       exam.Info            `json:"exam"`
	Number     int                  `json:"number"`
	Total      int                  `json:"total"`
	IsFirst    bool                 `json:"isFirst"`
	IsLast     bool                 `json:"isLast"`
	Question   exam.Question        `json:"question"`
	Selected   exam.ChoiceNumber    `json:"selected"`
	States     []QuestionState      `json:"states"`
	Unanswered int                  `json:"unanswered"`
	Submitting bool                 `json:"submitting"`
	Submitted  bool                 `json:"submitted"`
	Result     *exam.QuestionResult `json:"result,omitempty"`
	Stats      *Stats               `json:"stats,omitempty"`
}

func (c *TestController) View() TestView {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.cursor.Index()
	q := c.questions[i]
	v := TestView{
		ExamID:     c.examID,
		Exam:       c.info,
		Number:     c.cursor.Number(),
		Total:      c.cursor.Total(),
		IsFirst:    c.cursor.IsFirst(),
		IsLast:     c.cursor.IsLast(),
		Question:   q,
		Selected:   c.answers.Get(i),
		States:     c.statesLocked(),
		Unanswered: c.answers.UnansweredCount(),
		Submitting: c.submitting,
		Submitted:  c.submitted,
	}
	if !c.submitted {
		v.Question.CorrectAnswers = nil
		v.Question.Explanation = ""
		return v
	}
	if r, ok := c.results[q.ID]; ok {
		v.Result = &r
		v.Selected = r.Selected()
	}
	st := c.statsLocked()
	v.Stats = &st
	return v
}

func (c *TestController) statsLocked() Stats {
	st := Stats{Score: c.response.Score}
	for _, r := range c.response.Results {
		if r.IsCorrect {
			st.Correct++
		}
	}
	n := len(c.response.Results)
	st.Wrong = n - st.Correct
	if n > 0 {
		st.RatePercent = int(math.Round(float64(st.Correct) / float64(n) * 100))
	}
	st.ElapsedSeconds = int(c.elapsed / time.Second)
	st.ElapsedText = FormatElapsed(c.elapsed)
	return st
}

// FormatElapsed renders d as whole minutes and seconds, e.g. "12m 5s".
func FormatElapsed(d time.Duration) string {
	s := int(d / time.Second)
	if s < 0 {
		s = 0
	}
	return fmt.Sprintf("%dm %ds", s/60, s%60)
}
