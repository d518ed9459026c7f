package exam

// ChoiceNumber is the 1-based answer label shown next to a choice. It is the
// value compared against CorrectAnswers and sent back on submission.
type ChoiceNumber int

// NoChoice marks an unanswered question.
const NoChoice ChoiceNumber = 0

type Choice struct {
	ID     int64        `json:"id"`
	Number ChoiceNumber `json:"number"`
	Text   string       `json:"text"`
}

type Question struct {
	ID       int64    `json:"id"`
	Number   int      `json:"number"`
	Text     string   `json:"text"`
	ImageURL string   `json:"imageUrl,omitempty"`
	Example  string   `json:"example,omitempty"`
	Choices  []Choice `json:"choices"`

	// Only present for the with-answers variant and in graded results.
	CorrectAnswers []ChoiceNumber `json:"correctAnswers,omitempty"`
	Explanation    string         `json:"explanation,omitempty"`
}

// IsCorrect reports whether n is one of the question's correct answers.
// Questions may carry several correct answers.
func (q Question) IsCorrect(n ChoiceNumber) bool {
	return containsChoice(q.CorrectAnswers, n)
}

type Info struct {
	ID             int64  `json:"id"`
	Subject        string `json:"subject"`
	Title          string `json:"title"`
	TotalQuestions int    `json:"totalQuestions"`
	Year           int    `json:"year"`
}

// QuestionSet is what the exam API returns for one exam.
type QuestionSet struct {
	Exam      Info       `json:"exam"`
	Questions []Question `json:"questions"`
}

type Answer struct {
	QuestionID     int64 `json:"questionId"`
	SelectedAnswer *int  `json:"selectedAnswer"`
}

type SubmitRequest struct {
	Answers []Answer `json:"answers"`
}

type QuestionResult struct {
	QuestionID     int64          `json:"questionId"`
	SelectedAnswer *int           `json:"selectedAnswer"`
	CorrectAnswers []ChoiceNumber `json:"correctAnswers"`
	IsCorrect      bool           `json:"isCorrect"`
}

// Selected returns the graded selection, NoChoice when the question was skipped.
func (r QuestionResult) Selected() ChoiceNumber {
	if r.SelectedAnswer == nil {
		return NoChoice
	}
	return ChoiceNumber(*r.SelectedAnswer)
}

type SubmitResponse struct {
	ExamID         string           `json:"examId"`
	TotalQuestions int              `json:"totalQuestions"`
	CorrectCount   int              `json:"correctCount"`
	Score          float64          `json:"score"`
	Results        []QuestionResult `json:"results"`
}

// NullableChoice converts the internal sentinel to the wire form.
func NullableChoice(n ChoiceNumber) *int {
	if n == NoChoice {
		return nil
	}
	v := int(n)
	return &v
}

func containsChoice(set []ChoiceNumber, n ChoiceNumber) bool {
	if n == NoChoice {
		return false
	}
	for _, c := range set {
		if c == n {
			return true
		}
	}
	return false
}
