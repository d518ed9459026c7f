package session

import (
	"sync"

	"github.com/qknou/qknou-web/internal/exam"
)

// MemorizeController runs a study session: the user picks a choice, reveals
// the answer and explanation of that question, and moves on. Per question the
// state is unrevealed or revealed; what was shown is remembered by question id
// when the user navigates away and restored on return.
type MemorizeController struct {
	mu        sync.Mutex
	examID    string
	info      exam.Info
	questions []exam.Question
	answers   *AnswerStore
	cursor    *Cursor
	records   *RevealRecords
	revealed  bool
}

func NewMemorizeController(examID string, set exam.QuestionSet) (*MemorizeController, error) {
	if err := validate(examID, set); err != nil {
		return nil, err
	}
	return &MemorizeController{
		examID:    examID,
		info:      set.Exam,
		questions: set.Questions,
		answers:   NewAnswerStore(len(set.Questions)),
		cursor:    NewCursor(len(set.Questions)),
		records:   NewRevealRecords(),
	}, nil
}

func (c *MemorizeController) ExamID() string { return c.examID }

// SelectAnswer is ignored once the current question is revealed, and when v
// is not one of the question's choices.
func (c *MemorizeController) SelectAnswer(v exam.ChoiceNumber) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.cursor.Index()
	if c.revealed || !offers(c.questions[i], v) {
		return false
	}
	return c.answers.Select(i, v)
}

// Reveal shows the answer of the current question. It requires a selection.
func (c *MemorizeController) Reveal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.revealed || c.answers.Get(c.cursor.Index()) == exam.NoChoice {
		return false
	}
	c.revealed = true
	return true
}

// ResetQuestion lets the user retry the current question. The selection and
// the remembered record are cleared together.
func (c *MemorizeController) ResetQuestion() {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.cursor.Index()
	c.revealed = false
	c.answers.Clear(i)
	c.records.Forget(c.questions[i].ID)
}

func (c *MemorizeController) Next() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.move(c.cursor.Next)
}

func (c *MemorizeController) Prev() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.move(c.cursor.Prev)
}

// JumpTo moves to the 1-based question number n, clamped.
func (c *MemorizeController) JumpTo(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.move(func() bool {
		from := c.cursor.Index()
		c.cursor.JumpTo(n)
		return c.cursor.Index() != from
	})
}

// move snapshots the current question, runs step and restores the question
// it landed on. Nothing happens when step does not move the cursor.
func (c *MemorizeController) move(step func() bool) bool {
	from := c.cursor.Index()
	snap := RevealRecord{Revealed: c.revealed, SelectedAnswer: c.answers.Get(from)}
	if !step() {
		return false
	}
	c.records.Remember(c.questions[from].ID, snap)

	to := c.cursor.Index()
	if rec, ok := c.records.Lookup(c.questions[to].ID); ok {
		c.revealed = rec.Revealed
		c.answers.Select(to, rec.SelectedAnswer)
	} else {
		c.revealed = false
		c.answers.Clear(to)
	}
	return true
}

type ChoiceView struct {
	exam.Choice
	Selected bool       `json:"selected"`
	Mark     ChoiceMark `json:"mark"`
}

type MemorizeView struct {
	ExamID      string            `json:"examId"`
	Exam        exam.Info         `json:"exam"`
	Number      int               `json:"number"`
	Total       int               `json:"total"`
	IsFirst     bool              `json:"isFirst"`
	IsLast      bool              `json:"isLast"`
	QuestionID  int64             `json:"questionId"`
	Text        string            `json:"text"`
	ImageURL    string            `json:"imageUrl,omitempty"`
	Example     string            `json:"example,omitempty"`
	Choices     []ChoiceView      `json:"choices"`
	Selected    exam.ChoiceNumber `json:"selected"`
	Revealed    bool              `json:"revealed"`
	CanReveal   bool              `json:"canReveal"`
	Explanation string            `json:"explanation,omitempty"`
}

// View renders the current question. Correctness marks and the explanation
// are only filled in once the question is revealed.
func (c *MemorizeController) View() MemorizeView {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.cursor.Index()
	q := c.questions[i]
	sel := c.answers.Get(i)
	v := MemorizeView{
		ExamID:     c.examID,
		Exam:       c.info,
		Number:     c.cursor.Number(),
		Total:      c.cursor.Total(),
		IsFirst:    c.cursor.IsFirst(),
		IsLast:     c.cursor.IsLast(),
		QuestionID: q.ID,
		Text:       q.Text,
		ImageURL:   q.ImageURL,
		Example:    q.Example,
		Choices:    make([]ChoiceView, 0, len(q.Choices)),
		Selected:   sel,
		Revealed:   c.revealed,
		CanReveal:  !c.revealed && sel != exam.NoChoice,
	}
	for _, ch := range q.Choices {
		cv := ChoiceView{Choice: ch, Selected: ch.Number == sel, Mark: MarkNeutral}
		if c.revealed {
			cv.Mark = ClassifyChoice(ch.Number, sel, q.CorrectAnswers)
		}
		v.Choices = append(v.Choices, cv)
	}
	if c.revealed {
		v.Explanation = q.Explanation
	}
	return v
}
