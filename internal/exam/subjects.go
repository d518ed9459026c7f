package exam

// Subject is a course whose past exams can be practiced.
type Subject struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ExamCount int    `json:"examCount,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// Summary is one past exam of a subject, picked by year.
type Summary struct {
	ID          string `json:"id"`
	Year        int    `json:"year"`
	Title       string `json:"title,omitempty"`
	SubjectID   string `json:"subjectId"`
	SubjectName string `json:"subjectName,omitempty"`
}

type ListOpts struct {
	Search string
	Page   int
	Limit  int
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type SubjectPage struct {
	Pagination Pagination `json:"pagination"`
	Subjects   []Subject  `json:"subjects"`
}
