package models

import (
	"time"

	"gorm.io/datatypes"
)

// PracticeAttempt records one graded submission.
type PracticeAttempt struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	UserID     string          `json:"user_id" gorm:"not null;size:128;index"`
	SessionID  string          `json:"session_id" gorm:"not null;size:64;index"`
	QuestionID string          `json:"question_id" gorm:"not null;size:64"`
	Subject    string          `json:"subject" gorm:"not null;size:64;index"`
	Topic      string          `json:"topic" gorm:"size:200"`
	Kind       QuestionKind    `json:"kind" gorm:"size:16"`
	Difficulty DifficultyLevel `json:"difficulty" gorm:"size:16"`
	Shape      QuestionShape   `json:"shape" gorm:"size:16"`

	Payload  string `json:"payload" gorm:"type:text"`
	ImageRef string `json:"image_ref,omitempty" gorm:"size:512"`

	IsCorrect   bool           `json:"is_correct" gorm:"index"`
	Feedback    string         `json:"feedback" gorm:"type:text"`
	PartResults datatypes.JSON `json:"part_results" gorm:"type:jsonb"` // []PartResult

	TimeSpentSeconds int       `json:"time_spent_seconds"`
	CreatedAt        time.Time `json:"created_at" gorm:"index"`
}

// SubjectStats aggregates attempts for one subject.
type SubjectStats struct {
	Subject          string  `json:"subject"`
	Attempts         int64   `json:"attempts"`
	Correct          int64   `json:"correct"`
	Accuracy         float64 `json:"accuracy"`
	AvgTimeSpentSecs float64 `json:"avg_time_spent_seconds"`
}
