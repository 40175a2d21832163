package api

import "time"

// Module is a learning module grouping lessons by theme
type Module struct {
	ID        int64     `json:"id"`
	Number    int       `json:"number"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Lesson belongs to a module and optionally carries an icon blob.
// Blob bytes are never serialized; clients fetch them through the
// dedicated icon endpoint.
type Lesson struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	ModuleID        int64     `json:"moduleId"`
	IconContentType string    `json:"iconContentType,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Card is a knowledge card: one question with a correct and a wrong
// answer, optionally illustrated with a gif
type Card struct {
	ID             int64     `json:"id"`
	Question       string    `json:"question"`
	CorrectAnswer  string    `json:"correctAnswer"`
	WrongAnswer    string    `json:"wrongAnswer"`
	LessonID       int64     `json:"lessonId"`
	GifContentType string    `json:"gifContentType,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Microlearning is a capsule attached to a lesson with optional image
// and gif blobs
type Microlearning struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	LessonID         int64     `json:"lessonId"`
	ImageContentType string    `json:"imageContentType,omitempty"`
	GifContentType   string    `json:"gifContentType,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// ProgressEntry records one completion by a user
type ProgressEntry struct {
	UserID      int64     `json:"userId"`
	Kind        string    `json:"kind"` // "lesson" or "micro"
	RefID       int64     `json:"refId"`
	CompletedAt time.Time `json:"completedAt"`
}

// Media upload size limits in bytes
const (
	MaxIconSize  = 1 << 20     // 1 MB
	MaxMediaSize = 9 * 1 << 20 // 9 MB
)
