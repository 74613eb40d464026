package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/zaqqye/proctor_backend/internal/proctor"
)

// Review lifecycle of a violation. Pending is the only initial state;
// the others are reached solely through admin action.
const (
	ViolationPending   = "pending"
	ViolationReviewed  = "reviewed"
	ViolationIgnored   = "ignored"
	ViolationEscalated = "escalated"
)

// Violation is one detected rule-break during a proctored attempt.
// Append-mostly: created by the client monitor, mutated only by admin
// review, never deleted.
type Violation struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	ExamID    string `gorm:"size:64;not null;index:idx_violations_exam_ts,priority:1;index:idx_violations_exam_student,priority:1"`
	StudentID string `gorm:"size:64;not null;index:idx_violations_student_ts,priority:1;index:idx_violations_exam_student,priority:2"`

	// Snapshot for reporting without joins.
	StudentName  string `gorm:"size:255"`
	StudentEmail string `gorm:"size:255"`

	ViolationType    string    `gorm:"size:64;not null;index:idx_violations_type_ts,priority:1"`
	Severity         string    `gorm:"size:16;not null"`
	Timestamp        time.Time `gorm:"not null;index:idx_violations_exam_ts,priority:2;index:idx_violations_student_ts,priority:2;index:idx_violations_type_ts,priority:2;index:idx_violations_status_ts,priority:2"`
	ViolationCount   int       `gorm:"not null;default:1"`
	CausedAutoSubmit bool      `gorm:"not null;default:false"`

	Metadata datatypes.JSONMap `gorm:"type:json"`

	Status     string     `gorm:"size:16;not null;default:'pending';index:idx_violations_status_ts,priority:1"`
	ReviewedBy *string    `gorm:"size:64"`
	ReviewedAt *time.Time
	AdminNotes string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (v *Violation) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Timestamp.IsZero() {
		v.Timestamp = time.Now().UTC()
	}
	if v.ViolationCount < 1 {
		v.ViolationCount = 1
	}
	if v.Status == "" {
		v.Status = ViolationPending
	}
	return nil
}

// BeforeSave recomputes severity from the type on every write path, so a
// type change can never leave a stale severity behind.
func (v *Violation) BeforeSave(tx *gorm.DB) error {
	v.Severity = string(proctor.Classify(proctor.ViolationType(v.ViolationType)))
	return nil
}
