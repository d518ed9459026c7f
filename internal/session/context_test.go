package session

import (
	"context"
	"testing"
)

func TestContext_HandlerIsReplacedNotMerged(t *testing.T) {
	sc := NewContext()
	if err := sc.TriggerExamEnd(context.Background()); err != nil {
		t.Fatalf("trigger without handler must be a no-op, got %v", err)
	}

	var first, second int
	sc.RegisterExamEndHandler(func(context.Context) error { first++; return nil })
	sc.RegisterExamEndHandler(func(context.Context) error { second++; return nil })
	_ = sc.TriggerExamEnd(context.Background())
	if first != 0 || second != 1 {
		t.Fatalf("only the last handler may run: first=%d second=%d", first, second)
	}

	sc.RegisterExamEndHandler(nil)
	_ = sc.TriggerExamEnd(context.Background())
	if second != 1 {
		t.Fatalf("nil must unregister the handler")
	}
	if sc.Snapshot().HasHandler {
		t.Fatalf("snapshot must report no handler")
	}
}

func TestContext_Counters(t *testing.T) {
	sc := NewContext()
	sc.ReportTotalQuestions(10)
	sc.ReportUnansweredCount(4)
	sc.ReportSubmitted(true)
	sc.SetExamMode(true)
	st := sc.Snapshot()
	if st.TotalQuestions != 10 || st.UnansweredCount != 4 || !st.IsSubmitted || !st.IsExamMode {
		t.Fatalf("unexpected snapshot: %+v", st)
	}
	if !st.NeedsConfirmation() {
		t.Fatalf("unanswered questions must ask for confirmation")
	}
	sc.ReportUnansweredCount(0)
	if sc.Snapshot().NeedsConfirmation() {
		t.Fatalf("no confirmation when everything is answered")
	}
}
