package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Submission lifecycle.
const (
	SubmissionSubmitted     = "submitted"
	SubmissionAutoSubmitted = "auto-submitted"
)

// ExamSubmission is one finalized exam attempt. AutoSubmitted marks
// attempts force-closed by the violation threshold.
type ExamSubmission struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	ExamID        string `gorm:"type:uuid;not null;uniqueIndex:uniq_submission_exam_student"`
	StudentID     string `gorm:"size:64;not null;uniqueIndex:uniq_submission_exam_student"`
	Status        string `gorm:"size:32;not null"`
	AutoSubmitted bool   `gorm:"not null;default:false"`
	SubmittedAt   time.Time
	TotalScore    *float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (s *ExamSubmission) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = SubmissionSubmitted
	}
	return nil
}

// SubmissionAnswer is a single answered question within a submission.
// Free-form answers carry no score until a grader sets one.
type SubmissionAnswer struct {
	ID           uint   `gorm:"primaryKey"`
	SubmissionID string `gorm:"type:uuid;not null;uniqueIndex:uniq_answer_submission_question"`
	QuestionID   string `gorm:"size:64;not null;uniqueIndex:uniq_answer_submission_question"`
	AnswerText   string `gorm:"type:text"`
	Score        *float64
	GradedBy     *string `gorm:"size:64"`
	GradedAt     *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
