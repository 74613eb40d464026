package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Exam is the proctored attempt target. Authoring (questions, schedules)
// lives elsewhere; this record anchors violations, submissions and
// proctor scoping.
type Exam struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	Title         string `gorm:"size:255;not null;uniqueIndex"`
	MaxViolations int    `gorm:"not null;default:3"`
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (e *Exam) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.MaxViolations <= 0 {
		e.MaxViolations = 3
	}
	return nil
}

// ExamProctor maps a proctor/admin user to exams they supervise.
// Admins are allowed everywhere by role; this mapping scopes proctors.
type ExamProctor struct {
	ID        uint   `gorm:"primaryKey"`
	UserIDRef uint   `gorm:"uniqueIndex:uniq_proctor_exam"`
	ExamIDRef string `gorm:"type:uuid;uniqueIndex:uniq_proctor_exam"`
	CreatedAt time.Time
}

// ExamStudent maps a student user to exams they are enrolled in.
type ExamStudent struct {
	ID        uint   `gorm:"primaryKey"`
	UserIDRef uint   `gorm:"uniqueIndex:uniq_student_exam"`
	ExamIDRef string `gorm:"type:uuid;uniqueIndex:uniq_student_exam"`
	CreatedAt time.Time
}
