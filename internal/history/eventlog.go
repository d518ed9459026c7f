// Package history keeps an append-only log of graded exam submissions.
// Entries are written after the fact and never feed back into a session.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/qknou/qknou-web/internal/exam"
)

const TypeExamSubmitted = "exam.submitted"

type Event struct {
	Seq       int64
	Type      string
	Key       string
	UserID    string
	DataJSON  string
	CreatedAt int64
}

// Submission is the payload of an exam.submitted event.
type Submission struct {
	ExamID         string  `json:"examId"`
	TabID          string  `json:"tabId"`
	UserID         string  `json:"userId,omitempty"`
	TotalQuestions int     `json:"totalQuestions"`
	Answered       int     `json:"answered"`
	CorrectCount   int     `json:"correctCount"`
	Score          float64 `json:"score"`
	ElapsedSeconds int     `json:"elapsedSeconds"`
	SubmittedAt    int64   `json:"submittedAt"`
}

// NewSubmission summarizes one graded exam.
func NewSubmission(tabID, userID, examID string, req exam.SubmitRequest, resp exam.SubmitResponse, elapsed time.Duration) Submission {
	answered := 0
	for _, a := range req.Answers {
		if a.SelectedAnswer != nil {
			answered++
		}
	}
	return Submission{
		ExamID:         examID,
		TabID:          tabID,
		UserID:         userID,
		TotalQuestions: len(req.Answers),
		Answered:       answered,
		CorrectCount:   resp.CorrectCount,
		Score:          resp.Score,
		ElapsedSeconds: int(elapsed / time.Second),
	}
}

type EventRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db, now: time.Now} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, user_id, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.Type, e.Key, e.UserID, e.DataJSON, r.now().Unix())
	return err
}

// RecordSubmission appends s as an exam.submitted event.
func (r *EventRepo) RecordSubmission(ctx context.Context, s Submission) error {
	if s.SubmittedAt == 0 {
		s.SubmittedAt = r.now().Unix()
	}
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := r.Append(ctx, Event{Type: TypeExamSubmitted, Key: s.ExamID, UserID: s.UserID, DataJSON: string(b)}); err != nil {
		return fmt.Errorf("record submission %s: %w", s.ExamID, err)
	}
	return nil
}

// ListByUser returns the newest submissions of a user first.
func (r *EventRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Submission, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT data FROM event_log
		 WHERE typ = $1 AND user_id = $2
		 ORDER BY seq DESC LIMIT $3`,
		TypeExamSubmitted, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Submission{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var s Submission
		if err := json.Unmarshal([]byte(data), &s); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
