package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	authmw "github.com/qknou/qknou-web/internal/auth/middleware"
	"github.com/qknou/qknou-web/internal/exam"
	"github.com/qknou/qknou-web/internal/examapi"
	"github.com/qknou/qknou-web/internal/history"
	"github.com/qknou/qknou-web/internal/session"
	"github.com/qknou/qknou-web/internal/tab"
)

type fakeUpstream struct {
	mu      sync.Mutex
	tokens  []string
	submits int
}

func (f *fakeUpstream) FetchQuestions(ctx context.Context, examID string, v examapi.Variant) (exam.QuestionSet, error) {
	f.mu.Lock()
	f.tokens = append(f.tokens, examapi.BearerFromContext(ctx))
	f.mu.Unlock()
	switch examID {
	case "missing":
		return exam.QuestionSet{}, &examapi.FetchError{Op: "questions missing", Status: 404, Err: errors.New("not found")}
	case "empty":
		return exam.QuestionSet{}, &examapi.FetchError{Op: "questions empty", Err: examapi.ErrEmptyExam}
	case "down":
		return exam.QuestionSet{}, &examapi.FetchError{Op: "questions down", Status: 503, Err: errors.New("unavailable")}
	}
	set := exam.QuestionSet{
		Exam: exam.Info{ID: 1, Title: "2023 final", TotalQuestions: 2},
		Questions: []exam.Question{
			{ID: 101, Number: 1, Text: "q1", Choices: []exam.Choice{{ID: 1, Number: 1}, {ID: 2, Number: 2}}},
			{ID: 102, Number: 2, Text: "q2", Choices: []exam.Choice{{ID: 3, Number: 1}, {ID: 4, Number: 2}}},
		},
	}
	if v == examapi.WithAnswers {
		set.Questions[0].CorrectAnswers = []exam.ChoiceNumber{2}
		set.Questions[0].Explanation = "two"
		set.Questions[1].CorrectAnswers = []exam.ChoiceNumber{1}
	}
	return set, nil
}

func (f *fakeUpstream) SubmitAnswers(_ context.Context, examID string, req exam.SubmitRequest) (exam.SubmitResponse, error) {
	f.mu.Lock()
	f.submits++
	f.mu.Unlock()
	resp := exam.SubmitResponse{ExamID: examID, TotalQuestions: len(req.Answers)}
	for _, a := range req.Answers {
		ok := a.SelectedAnswer != nil && *a.SelectedAnswer == 2
		if ok {
			resp.CorrectCount++
		}
		resp.Results = append(resp.Results, exam.QuestionResult{QuestionID: a.QuestionID, SelectedAnswer: a.SelectedAnswer, CorrectAnswers: []exam.ChoiceNumber{2}, IsCorrect: ok})
	}
	resp.Score = float64(resp.CorrectCount) * 50
	return resp, nil
}

type fakeCatalog struct{}

func (fakeCatalog) ListSubjects(_ context.Context, opts exam.ListOpts) (exam.SubjectPage, error) {
	return exam.SubjectPage{
		Pagination: exam.Pagination{Page: opts.Page, Limit: opts.Limit, Total: 1, TotalPages: 1},
		Subjects:   []exam.Subject{{ID: 7, Name: "Databases " + opts.Search}},
	}, nil
}

func (fakeCatalog) GetSubject(_ context.Context, id string) (exam.Subject, error) {
	if id != "7" {
		return exam.Subject{}, &examapi.FetchError{Op: "subject " + id, Status: 404, Err: errors.New("nope")}
	}
	return exam.Subject{ID: 7, Name: "Databases"}, nil
}

func (fakeCatalog) ListExamsForSubject(context.Context, string) ([]exam.Summary, error) {
	return nil, nil
}

type fakeHistory struct{ user string }

func (f *fakeHistory) ListByUser(_ context.Context, userID string, _ int) ([]history.Submission, error) {
	f.user = userID
	return []history.Submission{{ExamID: "e1", UserID: userID, Score: 50}}, nil
}

type testServer struct {
	*httptest.Server
	up   *fakeUpstream
	auth *authmw.AuthService
	hist *fakeHistory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	up := &fakeUpstream{}
	reg := tab.NewRegistry(tab.Config{
		Fetcher:   up,
		Submitter: up,
		// a ticker that never fires keeps timers out of the way
		Ticker: func(time.Duration) (<-chan time.Time, func()) { return make(chan time.Time), func() {} },
	})
	t.Cleanup(reg.Shutdown)
	auth := authmw.NewAuthService("secret")
	hist := &fakeHistory{}
	srv := httptest.NewServer(APIRoutes(Deps{Tabs: reg, Catalog: fakeCatalog{}, Auth: auth, History: hist}))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, up: up, auth: auth, hist: hist}
}

func (s *testServer) do(t *testing.T, method, path, body, token string) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	b, _ := io.ReadAll(res.Body)
	return res.StatusCode, b
}

func (s *testServer) openTab(t *testing.T, token string) string {
	t.Helper()
	code, b := s.do(t, http.MethodPost, "/tabs", "", token)
	if code != http.StatusCreated {
		t.Fatalf("open tab: %d %s", code, b)
	}
	var out struct {
		TabID string `json:"tabId"`
	}
	if err := json.Unmarshal(b, &out); err != nil || out.TabID == "" {
		t.Fatalf("open tab body %s: %v", b, err)
	}
	return out.TabID
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
	return v
}

func TestBrowseRoutes(t *testing.T) {
	s := newTestServer(t)

	code, b := s.do(t, http.MethodGet, "/subjects?search=db&page=2", "", "")
	if code != http.StatusOK {
		t.Fatalf("subjects: %d %s", code, b)
	}
	page := decode[exam.SubjectPage](t, b)
	if page.Pagination.Page != 2 || page.Pagination.Limit != 20 || page.Subjects[0].Name != "Databases db" {
		t.Fatalf("page = %+v", page)
	}

	if code, _ := s.do(t, http.MethodGet, "/subjects/7", "", ""); code != http.StatusOK {
		t.Fatalf("subject 7: %d", code)
	}
	if code, _ := s.do(t, http.MethodGet, "/subjects/8", "", ""); code != http.StatusNotFound {
		t.Fatalf("subject 8: %d, want 404", code)
	}
	code, b = s.do(t, http.MethodGet, "/subjects/7/exams", "", "")
	if code != http.StatusOK || strings.TrimSpace(string(b)) != "[]" {
		t.Fatalf("exams: %d %s", code, b)
	}
}

func TestMemorizeFlow(t *testing.T) {
	s := newTestServer(t)
	id := s.openTab(t, "")
	base := "/tabs/" + id + "/memorize"

	code, b := s.do(t, http.MethodPost, base+"/e1", "", "")
	if code != http.StatusCreated {
		t.Fatalf("mount: %d %s", code, b)
	}
	v := decode[session.MemorizeView](t, b)
	if v.Number != 1 || v.Total != 2 || v.Revealed || v.Explanation != "" {
		t.Fatalf("initial view = %+v", v)
	}

	// reveal needs a selection first
	_, b = s.do(t, http.MethodPost, base+"/reveal", "", "")
	if decode[session.MemorizeView](t, b).Revealed {
		t.Fatalf("revealed without a selection")
	}

	s.do(t, http.MethodPost, base+"/select", `{"choice":1}`, "")
	_, b = s.do(t, http.MethodPost, base+"/reveal", "", "")
	v = decode[session.MemorizeView](t, b)
	if !v.Revealed || v.Explanation != "two" {
		t.Fatalf("after reveal = %+v", v)
	}
	if v.Choices[0].Mark != session.MarkIncorrect || v.Choices[1].Mark != session.MarkCorrect {
		t.Fatalf("marks = %v / %v", v.Choices[0].Mark, v.Choices[1].Mark)
	}

	_, b = s.do(t, http.MethodPost, base+"/next", "", "")
	if v = decode[session.MemorizeView](t, b); v.Number != 2 || v.Revealed || v.Selected != exam.NoChoice {
		t.Fatalf("second question = %+v", v)
	}
	_, b = s.do(t, http.MethodPost, base+"/jump", `{"number":1}`, "")
	if v = decode[session.MemorizeView](t, b); v.Number != 1 || !v.Revealed || v.Selected != 1 {
		t.Fatalf("restored first question = %+v", v)
	}
	_, b = s.do(t, http.MethodPost, base+"/reset", "", "")
	if v = decode[session.MemorizeView](t, b); v.Revealed || v.Selected != exam.NoChoice {
		t.Fatalf("after reset = %+v", v)
	}

	if code, _ := s.do(t, http.MethodPost, base+"/select", `{bad`, ""); code != http.StatusBadRequest {
		t.Fatalf("bad json: %d", code)
	}
}

func TestTestModeFlow(t *testing.T) {
	s := newTestServer(t)
	id := s.openTab(t, "")
	base := "/tabs/" + id

	code, b := s.do(t, http.MethodPost, base+"/test/e1", "", "")
	if code != http.StatusCreated {
		t.Fatalf("mount: %d %s", code, b)
	}
	v := decode[session.TestView](t, b)
	if v.Submitted || len(v.States) != 2 || v.Unanswered != 2 {
		t.Fatalf("initial view = %+v", v)
	}

	_, b = s.do(t, http.MethodGet, base+"/context", "", "")
	st := decode[tab.State](t, b)
	if st.Mode != tab.ModeTest || !st.Context.IsExamMode || st.Clock != "50:00" {
		t.Fatalf("context = %+v", st)
	}

	s.do(t, http.MethodPost, base+"/test/select", `{"choice":2}`, "")

	// one question left unanswered: ending needs confirmation
	code, b = s.do(t, http.MethodPost, base+"/end", "", "")
	if code != http.StatusConflict || !decode[tab.State](t, b).NeedsConfirmation {
		t.Fatalf("end without confirm: %d %s", code, b)
	}
	code, b = s.do(t, http.MethodPost, base+"/end?confirm=true", "", "")
	if code != http.StatusOK || !decode[tab.State](t, b).Context.IsSubmitted {
		t.Fatalf("end: %d %s", code, b)
	}

	_, b = s.do(t, http.MethodGet, base+"/test", "", "")
	v = decode[session.TestView](t, b)
	if !v.Submitted || v.Stats == nil || v.Stats.Correct != 1 || v.Stats.Wrong != 1 || v.Stats.RatePercent != 50 {
		t.Fatalf("graded view = %+v", v)
	}
	if v.States[0] != session.StateCorrect || v.States[1] != session.StateSkipped {
		t.Fatalf("states = %v", v.States)
	}

	// answers are frozen after submission
	_, b = s.do(t, http.MethodPost, base+"/test/select", `{"choice":1}`, "")
	if decode[session.TestView](t, b).Selected != 2 {
		t.Fatalf("selection changed after submission")
	}
	if code, _ := s.do(t, http.MethodPost, base+"/end", "", ""); code != http.StatusOK || s.up.submits != 1 {
		t.Fatalf("second end: code=%d submits=%d", code, s.up.submits)
	}

	if code, _ := s.do(t, http.MethodDelete, base+"/test", "", ""); code != http.StatusNoContent {
		t.Fatalf("unmount: %d", code)
	}
	if code, _ := s.do(t, http.MethodGet, base+"/test", "", ""); code != http.StatusConflict {
		t.Fatalf("view after unmount: %d, want 409", code)
	}
}

func TestMountErrors(t *testing.T) {
	s := newTestServer(t)
	id := s.openTab(t, "")

	cases := map[string]int{
		"missing": http.StatusNotFound,
		"empty":   http.StatusBadRequest,
		"down":    http.StatusBadGateway,
		"%20":     http.StatusBadRequest,
	}
	for examID, want := range cases {
		if code, b := s.do(t, http.MethodPost, "/tabs/"+id+"/test/"+examID, "", ""); code != want {
			t.Fatalf("mount %q: %d %s, want %d", examID, code, b, want)
		}
	}
	if code, _ := s.do(t, http.MethodGet, "/tabs/nope/context", "", ""); code != http.StatusNotFound {
		t.Fatalf("unknown tab: %d", code)
	}
}

func TestTabOwnershipAndToken(t *testing.T) {
	s := newTestServer(t)
	tok, err := s.auth.IssueJWT(authmw.User{ID: "u-1"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	other, _ := s.auth.IssueJWT(authmw.User{ID: "u-2"}, time.Hour)

	id := s.openTab(t, tok)
	if code, _ := s.do(t, http.MethodGet, "/tabs/"+id+"/context", "", other); code != http.StatusNotFound {
		t.Fatalf("other user saw the tab: %d", code)
	}
	if code, _ := s.do(t, http.MethodGet, "/tabs/"+id+"/context", "", ""); code != http.StatusNotFound {
		t.Fatalf("anonymous caller saw the tab: %d", code)
	}
	if code, b := s.do(t, http.MethodPost, "/tabs/"+id+"/memorize/e1", "", tok); code != http.StatusCreated {
		t.Fatalf("owner mount: %d %s", code, b)
	}
	s.up.mu.Lock()
	got := s.up.tokens[len(s.up.tokens)-1]
	s.up.mu.Unlock()
	if got != tok {
		t.Fatalf("upstream token = %q", got)
	}

	if code, _ := s.do(t, http.MethodDelete, "/tabs/"+id, "", tok); code != http.StatusNoContent {
		t.Fatalf("close: %d", code)
	}
	if code, _ := s.do(t, http.MethodGet, "/tabs/"+id+"/context", "", tok); code != http.StatusNotFound {
		t.Fatalf("closed tab: %d", code)
	}
}

func TestMySubmissions(t *testing.T) {
	s := newTestServer(t)
	if code, _ := s.do(t, http.MethodGet, "/me/submissions", "", ""); code != http.StatusUnauthorized {
		t.Fatalf("anonymous: %d", code)
	}
	tok, _ := s.auth.IssueJWT(authmw.User{ID: "u-9"}, time.Hour)
	code, b := s.do(t, http.MethodGet, "/me/submissions", "", tok)
	if code != http.StatusOK {
		t.Fatalf("submissions: %d %s", code, b)
	}
	list := decode[[]history.Submission](t, b)
	if len(list) != 1 || s.hist.user != "u-9" {
		t.Fatalf("list = %+v user=%q", list, s.hist.user)
	}
}
