// Package tab hosts the practice sessions of open browser tabs. Each tab owns
// one session Context shared by its header timer and the mounted controller.
package tab

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qknou/qknou-web/internal/exam"
	"github.com/qknou/qknou-web/internal/examapi"
	"github.com/qknou/qknou-web/internal/logger"
	"github.com/qknou/qknou-web/internal/metrics"
	"github.com/qknou/qknou-web/internal/session"
)

var (
	ErrNotFound   = errors.New("tab: not found")
	ErrNotMounted = errors.New("tab: no session mounted")
)

// Fetcher loads question sets. It is implemented by the exam API client.
type Fetcher interface {
	FetchQuestions(ctx context.Context, examID string, v examapi.Variant) (exam.QuestionSet, error)
}

// SubmittedFunc observes a graded submission made from tab t.
type SubmittedFunc func(ctx context.Context, t *Tab, examID string, req exam.SubmitRequest, resp exam.SubmitResponse, elapsed time.Duration)

type Config struct {
	Fetcher      Fetcher
	Submitter    session.Submitter
	ExamDuration time.Duration
	IdleTTL      time.Duration
	Log          *logger.Logger
	OnSubmitted  SubmittedFunc

	// Ticker and Now are replaced in tests.
	Ticker session.TickerFunc
	Now    func() time.Time
}

type Registry struct {
	cfg    Config
	log    *logger.Logger
	now    func() time.Time
	base   context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	tabs map[string]*Tab
}

func NewRegistry(cfg Config) *Registry {
	if cfg.ExamDuration <= 0 {
		cfg.ExamDuration = session.DefaultExamDuration
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 2 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Registry{
		cfg:    cfg,
		log:    log.With("component", "tab"),
		now:    cfg.Now,
		base:   base,
		cancel: cancel,
		tabs:   map[string]*Tab{},
	}
}

// Open creates a tab for userID ("" for anonymous visitors).
func (r *Registry) Open(userID string) *Tab {
	t := &Tab{
		id:       uuid.NewString(),
		userID:   userID,
		reg:      r,
		sctx:     session.NewContext(),
		lastSeen: r.now(),
	}
	r.mu.Lock()
	r.tabs[t.id] = t
	r.mu.Unlock()
	metrics.TabOpened()
	r.log.Debug("tab opened", "tab_id", t.id)
	return t
}

// Get returns the tab and marks it as seen.
func (r *Registry) Get(id string) (*Tab, error) {
	r.mu.Lock()
	t, ok := r.tabs[id]
	r.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	t.touch(r.now())
	return t, nil
}

// Close unmounts everything on the tab and forgets it.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	t, ok := r.tabs[id]
	delete(r.tabs, id)
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	t.close()
	metrics.TabClosed()
	r.log.Debug("tab closed", "tab_id", id)
	return nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tabs)
}

// Sweep closes tabs idle for longer than the configured TTL and returns how
// many were closed. Tabs with a running exam timer are kept.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.cfg.IdleTTL)
	var stale []string
	r.mu.Lock()
	for id, t := range r.tabs {
		if t.idleSince(cutoff) {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()

	n := 0
	for _, id := range stale {
		if r.Close(id) == nil {
			n++
		}
	}
	return n
}

// Run sweeps idle tabs until ctx is done, then shuts the registry down.
func (r *Registry) Run(ctx context.Context) error {
	every := r.cfg.IdleTTL / 4
	if every < time.Second {
		every = time.Second
	}
	tk := time.NewTicker(every)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Shutdown()
			return nil
		case <-tk.C:
			if n := r.Sweep(); n > 0 {
				r.log.Info("closed idle tabs", "count", n, "open", r.Len())
			}
		}
	}
}

// Shutdown closes every tab and stops all timers.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.tabs))
	for id := range r.tabs {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		_ = r.Close(id)
	}
	r.cancel()
}
