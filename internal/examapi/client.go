// Package examapi talks to the exam REST API: question sets, grading, and the
// subject/exam catalogue used by the browse pages.
package examapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/qknou/qknou-web/internal/exam"
	"github.com/qknou/qknou-web/internal/examapi/cache"
	"github.com/qknou/qknou-web/internal/metrics"
)

// Variant selects whether a question set carries answers and explanations.
type Variant string

const (
	WithAnswers    Variant = "with-answers"
	WithoutAnswers Variant = "without-answers"
)

func (v Variant) mode() string {
	if v == WithAnswers {
		return "study"
	}
	return "test"
}

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Cache    cache.Cache // optional, question sets only
	CacheTTL time.Duration
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

type Client struct {
	base  string
	http  *http.Client
	cache cache.Cache
	ttl   time.Duration
}

func New(cfg Config) *Client {
	h := cfg.HTTPClient
	if h == nil {
		h = &http.Client{}
	}
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}
	return &Client{
		base:  strings.TrimSuffix(cfg.BaseURL, "/"),
		http:  h,
		cache: cfg.Cache,
		ttl:   cfg.CacheTTL,
	}
}

type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

type bearerKey struct{}

// WithBearer attaches the user's login token to upstream calls made with ctx.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

// BearerFromContext returns the token set by WithBearer, or "".
func BearerFromContext(ctx context.Context) string {
	s, _ := ctx.Value(bearerKey{}).(string)
	return s
}

// FetchQuestions loads the question set of an exam. An empty set is an error.
func (c *Client) FetchQuestions(ctx context.Context, examID string, v Variant) (exam.QuestionSet, error) {
	op := "questions " + examID
	key := "questions:" + examID + ":" + v.mode()

	if c.cache != nil {
		if b, ok, err := c.cache.Get(ctx, key); err == nil && ok {
			var set exam.QuestionSet
			if json.Unmarshal(b, &set) == nil && len(set.Questions) > 0 {
				metrics.CacheLookup(true)
				return set, nil
			}
		}
		metrics.CacheLookup(false)
	}

	u := fmt.Sprintf("%s/api/exams/%s/questions?mode=%s", c.base, url.PathEscape(examID), v.mode())
	var set exam.QuestionSet
	if err := c.get(ctx, "fetch_questions", op, u, &set); err != nil {
		return exam.QuestionSet{}, err
	}
	if len(set.Questions) == 0 {
		return exam.QuestionSet{}, &FetchError{Op: op, Err: ErrEmptyExam}
	}
	for i := range set.Questions {
		if set.Questions[i].CorrectAnswers == nil && v == WithAnswers {
			set.Questions[i].CorrectAnswers = []exam.ChoiceNumber{}
		}
	}

	if c.cache != nil {
		if b, err := json.Marshal(set); err == nil {
			_ = c.cache.Set(ctx, key, b, c.ttl)
		}
	}
	return set, nil
}

// SubmitAnswers sends the answers of a finished exam and returns the grading.
func (c *Client) SubmitAnswers(ctx context.Context, examID string, req exam.SubmitRequest) (resp exam.SubmitResponse, err error) {
	defer func(start time.Time) { metrics.ObserveUpstream("submit_answers", start, err) }(time.Now())

	body, err := json.Marshal(req)
	if err != nil {
		return exam.SubmitResponse{}, &SubmitError{ExamID: examID, Err: err}
	}
	u := fmt.Sprintf("%s/api/exams/%s/submit", c.base, url.PathEscape(examID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return exam.SubmitResponse{}, &SubmitError{ExamID: examID, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(ctx, httpReq)

	res, err := c.http.Do(httpReq)
	if err != nil {
		return exam.SubmitResponse{}, &SubmitError{ExamID: examID, Err: err}
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return exam.SubmitResponse{}, &SubmitError{ExamID: examID, Status: res.StatusCode, Err: statusErr(res)}
	}
	env := envelope[json.RawMessage]{}
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return exam.SubmitResponse{}, &SubmitError{ExamID: examID, Err: err}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return exam.SubmitResponse{}, &SubmitError{ExamID: examID, Err: errors.New("empty response data")}
	}
	var out exam.SubmitResponse
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return exam.SubmitResponse{}, &SubmitError{ExamID: examID, Err: err}
	}
	for i := range out.Results {
		if out.Results[i].CorrectAnswers == nil {
			out.Results[i].CorrectAnswers = []exam.ChoiceNumber{}
		}
	}
	return out, nil
}

func (c *Client) ListSubjects(ctx context.Context, opts exam.ListOpts) (exam.SubjectPage, error) {
	q := url.Values{}
	if s := strings.TrimSpace(opts.Search); s != "" {
		q.Set("search", s)
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	u := c.base + "/api/subjects"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var page exam.SubjectPage
	err := c.get(ctx, "list_subjects", "subjects", u, &page)
	return page, err
}

func (c *Client) GetSubject(ctx context.Context, id string) (exam.Subject, error) {
	var s exam.Subject
	err := c.get(ctx, "get_subject", "subject "+id, c.base+"/api/subjects/"+url.PathEscape(id), &s)
	return s, err
}

func (c *Client) ListExamsForSubject(ctx context.Context, subjectID string) ([]exam.Summary, error) {
	var list []exam.Summary
	err := c.get(ctx, "list_exams", "exams of subject "+subjectID, c.base+"/api/subjects/"+url.PathEscape(subjectID)+"/exams", &list)
	return list, err
}

func (c *Client) get(ctx context.Context, metric, op, u string, out any) (err error) {
	defer func(start time.Time) { metrics.ObserveUpstream(metric, start, err) }(time.Now())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(ctx, req)

	res, err := c.http.Do(req)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return &FetchError{Op: op, Status: res.StatusCode, Err: statusErr(res)}
	}
	env := envelope[json.RawMessage]{}
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return &FetchError{Op: op, Err: err}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return &FetchError{Op: op, Err: errors.New("empty response data")}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &FetchError{Op: op, Err: err}
	}
	return nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) {
	if tok := BearerFromContext(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
}

func statusErr(res *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	return &StatusError{Status: res.Status, Body: strings.TrimSpace(string(b))}
}
