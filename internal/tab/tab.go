package tab

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qknou/qknou-web/internal/exam"
	"github.com/qknou/qknou-web/internal/examapi"
	"github.com/qknou/qknou-web/internal/metrics"
	"github.com/qknou/qknou-web/internal/session"
)

const (
	ModeNone     = ""
	ModeMemorize = "memorize"
	ModeTest     = "test"
)

// Tab is one browser tab. At most one session, memorize or test, is mounted
// at a time; mounting replaces whatever was there.
type Tab struct {
	id     string
	userID string
	reg    *Registry
	sctx   *session.Context

	// mountMu serializes mount and unmount sequences.
	mountMu sync.Mutex

	mu       sync.Mutex
	memorize *session.MemorizeController
	test     *session.TestController
	timer    *session.Timer
	lastSeen time.Time
	closed   bool
}

func (t *Tab) ID() string                { return t.id }
func (t *Tab) UserID() string            { return t.userID }
func (t *Tab) Context() *session.Context { return t.sctx }

func (t *Tab) touch(now time.Time) {
	t.mu.Lock()
	t.lastSeen = now
	t.mu.Unlock()
}

// idleSince reports whether the tab was last seen before cutoff. A tab whose
// exam is still counting down is never idle, so its time-out submission runs.
func (t *Tab) idleSince(cutoff time.Time) bool {
	t.mu.Lock()
	seen, timer := t.lastSeen, t.timer
	t.mu.Unlock()
	if timer != nil && timer.Running() {
		return false
	}
	return seen.Before(cutoff)
}

// MountMemorize loads the exam with answers and starts a memorize session.
func (t *Tab) MountMemorize(ctx context.Context, examID string) (*session.MemorizeController, error) {
	set, err := t.reg.cfg.Fetcher.FetchQuestions(ctx, examID, examapi.WithAnswers)
	if err != nil {
		return nil, err
	}
	c, err := session.NewMemorizeController(examID, set)
	if err != nil {
		return nil, err
	}

	t.mountMu.Lock()
	defer t.mountMu.Unlock()
	if err := t.unmountLocked(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.memorize = c
	t.mu.Unlock()

	metrics.SessionStarted(ModeMemorize)
	t.reg.log.Info("memorize session mounted", "tab_id", t.id, "exam_id", examID, "questions", len(set.Questions))
	return c, nil
}

// MountTest loads the exam without answers, mounts a test session on the
// tab's context and starts the countdown.
func (t *Tab) MountTest(ctx context.Context, examID string) (*session.TestController, error) {
	set, err := t.reg.cfg.Fetcher.FetchQuestions(ctx, examID, examapi.WithoutAnswers)
	if err != nil {
		return nil, err
	}
	c, err := session.NewTestController(examID, set, t.reg.cfg.Submitter, t.sctx,
		session.WithClock(t.reg.now),
		session.WithSubmitHook(func(ctx context.Context, examID string, req exam.SubmitRequest, resp exam.SubmitResponse, elapsed time.Duration) {
			t.reg.log.Info("exam submitted", "tab_id", t.id, "exam_id", examID, "score", resp.Score, "elapsed", elapsed.String())
			if t.reg.cfg.OnSubmitted != nil {
				t.reg.cfg.OnSubmitted(ctx, t, examID, req, resp, elapsed)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	opts := []session.TimerOption{
		session.WithExpireHook(func(err error) {
			metrics.Submission("timeout", err)
			if err != nil {
				t.reg.log.Warn("time-out submission failed", "tab_id", t.id, "exam_id", examID, "error", err)
				return
			}
			t.reg.log.Info("exam time ran out", "tab_id", t.id, "exam_id", examID)
		}),
	}
	if t.reg.cfg.Ticker != nil {
		opts = append(opts, session.WithTicker(t.reg.cfg.Ticker))
	}
	timer := session.NewTimer(t.sctx, t.reg.cfg.ExamDuration, opts...)

	t.mountMu.Lock()
	defer t.mountMu.Unlock()
	if err := t.unmountLocked(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.test = c
	t.timer = timer
	t.mu.Unlock()

	c.Mount()
	// the timer outlives the request; it keeps the user's token for the
	// time-out submission
	timer.Start(examapi.WithBearer(t.reg.base, examapi.BearerFromContext(ctx)))

	metrics.SessionStarted(ModeTest)
	t.reg.log.Info("test session mounted", "tab_id", t.id, "exam_id", examID, "questions", len(set.Questions))
	return c, nil
}

// UnmountTest tears down the test session, if any.
func (t *Tab) UnmountTest() {
	t.mountMu.Lock()
	defer t.mountMu.Unlock()
	t.mu.Lock()
	c, timer := t.test, t.timer
	t.test, t.timer = nil, nil
	t.mu.Unlock()
	teardown(c, timer)
}

// unmountLocked clears both sessions. The caller holds mountMu.
func (t *Tab) unmountLocked() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrNotFound
	}
	c, timer := t.test, t.timer
	t.test, t.timer, t.memorize = nil, nil, nil
	t.mu.Unlock()
	teardown(c, timer)
	return nil
}

func teardown(c *session.TestController, timer *session.Timer) {
	if timer != nil {
		timer.Stop()
	}
	if c != nil {
		c.Unmount()
	}
}

func (t *Tab) close() {
	t.mountMu.Lock()
	defer t.mountMu.Unlock()
	_ = t.unmountLocked()
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

func (t *Tab) Memorize() (*session.MemorizeController, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.memorize == nil {
		return nil, ErrNotMounted
	}
	return t.memorize, nil
}

func (t *Tab) Test() (*session.TestController, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.test == nil {
		return nil, ErrNotMounted
	}
	return t.test, nil
}

// End fires the exam-end trigger on the tab's context, the same path the
// timer takes on expiry. With nothing registered it does nothing.
func (t *Tab) End(ctx context.Context) (session.ContextState, error) {
	before := t.sctx.Snapshot()
	err := t.sctx.TriggerExamEnd(ctx)
	if before.HasHandler && !before.IsSubmitted {
		metrics.Submission("manual", err)
	}
	if err != nil {
		return t.sctx.Snapshot(), fmt.Errorf("end exam: %w", err)
	}

	t.mu.Lock()
	timer := t.timer
	t.mu.Unlock()
	if timer != nil && t.sctx.Snapshot().IsSubmitted {
		timer.Stop()
	}
	return t.sctx.Snapshot(), nil
}

// State is what the tab header renders.
type State struct {
	TabID             string               `json:"tabId"`
	Mode              string               `json:"mode"`
	ExamID            string               `json:"examId,omitempty"`
	Context           session.ContextState `json:"context"`
	NeedsConfirmation bool                 `json:"needsConfirmation"`
	RemainingSeconds  int                  `json:"remainingSeconds,omitempty"`
	Clock             string               `json:"clock,omitempty"`
	TimeUp            bool                 `json:"timeUp,omitempty"`
}

func (t *Tab) State() State {
	t.mu.Lock()
	mem, test, timer := t.memorize, t.test, t.timer
	t.mu.Unlock()

	st := State{TabID: t.id, Mode: ModeNone, Context: t.sctx.Snapshot()}
	st.NeedsConfirmation = st.Context.HasHandler && !st.Context.IsSubmitted && st.Context.NeedsConfirmation()
	switch {
	case test != nil:
		st.Mode = ModeTest
		st.ExamID = test.ExamID()
	case mem != nil:
		st.Mode = ModeMemorize
		st.ExamID = mem.ExamID()
	}
	if timer != nil {
		rem := timer.Remaining()
		st.RemainingSeconds = int(rem / time.Second)
		st.Clock = session.FormatClock(rem)
		st.TimeUp = timer.Expired()
	}
	return st
}
