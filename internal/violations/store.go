package violations

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/zaqqye/proctor_backend/internal/models"
	"github.com/zaqqye/proctor_backend/internal/proctor"
)

const (
	DefaultRecentWindowMinutes = 5
	DefaultRecentLimit         = 50
	DefaultHighRiskThreshold   = 3
)

// Store is the durable append-mostly violation log plus its admin-facing
// aggregations.
type Store struct {
	DB *gorm.DB
}

// Input is a violation as reported by the client monitor.
type Input struct {
	ExamID           string
	StudentID        string
	StudentName      string
	StudentEmail     string
	ViolationType    string
	Timestamp        time.Time // zero means server time
	ViolationCount   int
	CausedAutoSubmit bool
	Metadata         map[string]any
}

// Record validates and persists one violation. Severity is derived from
// the type by the model's save hook.
func (s *Store) Record(ctx context.Context, in Input) (*models.Violation, error) {
	if in.ExamID == "" {
		return nil, &ValidationError{Field: "exam_id", Reason: "required"}
	}
	if in.StudentID == "" {
		return nil, &ValidationError{Field: "student_id", Reason: "required"}
	}
	if !proctor.IsValidType(proctor.ViolationType(in.ViolationType)) {
		return nil, &ValidationError{Field: "violation_type", Reason: "not in the closed enumeration"}
	}

	v := models.Violation{
		ExamID:           in.ExamID,
		StudentID:        in.StudentID,
		StudentName:      in.StudentName,
		StudentEmail:     in.StudentEmail,
		ViolationType:    in.ViolationType,
		Timestamp:        in.Timestamp.UTC(),
		ViolationCount:   in.ViolationCount,
		CausedAutoSubmit: in.CausedAutoSubmit,
		Metadata:         datatypes.JSONMap(in.Metadata),
	}
	if in.Timestamp.IsZero() {
		v.Timestamp = time.Now().UTC()
	}
	if err := s.DB.WithContext(ctx).Create(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// TypeSummary is one row of the per-exam aggregation.
type TypeSummary struct {
	ViolationType      string    `json:"violation_type"`
	Count              int64     `json:"count"`
	UniqueStudentCount int64     `json:"unique_student_count"`
	LatestTimestamp    time.Time `json:"latest_timestamp"`
}

// SummaryByType aggregates an exam's violations per type, highest count
// first; ties break on type ascending so the order is deterministic.
func (s *Store) SummaryByType(ctx context.Context, examID string) ([]TypeSummary, error) {
	var out []TypeSummary
	err := s.DB.WithContext(ctx).
		Model(&models.Violation{}).
		Select("violation_type, SUM(violation_count) AS count, COUNT(DISTINCT student_id) AS unique_student_count, MAX(timestamp) AS latest_timestamp").
		Where("exam_id = ?", examID).
		Group("violation_type").
		Order("count DESC, violation_type ASC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// HighRiskStudent is a student at or above the violation threshold.
type HighRiskStudent struct {
	StudentID       string    `json:"student_id"`
	StudentName     string    `json:"student_name"`
	StudentEmail    string    `json:"student_email"`
	TotalViolations int64     `json:"total_violations"`
	ViolationTypes  []string  `json:"violation_types"`
	LatestTimestamp time.Time `json:"latest_timestamp"`
}

// HighRiskStudents lists students whose total violation count for the
// exam meets minViolations (default 3), most violations first, then most
// recent first.
func (s *Store) HighRiskStudents(ctx context.Context, examID string, minViolations int) ([]HighRiskStudent, error) {
	if minViolations <= 0 {
		minViolations = DefaultHighRiskThreshold
	}

	var rows []HighRiskStudent
	err := s.DB.WithContext(ctx).
		Model(&models.Violation{}).
		Select("student_id, MAX(student_name) AS student_name, MAX(student_email) AS student_email, SUM(violation_count) AS total_violations, MAX(timestamp) AS latest_timestamp").
		Where("exam_id = ?", examID).
		Group("student_id").
		Having("SUM(violation_count) >= ?", minViolations).
		Order("total_violations DESC, latest_timestamp DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return rows, nil
	}

	// Distinct type sets fetched separately; string aggregation differs
	// between Postgres and sqlite.
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.StudentID)
	}
	type pair struct {
		StudentID     string
		ViolationType string
	}
	var pairs []pair
	err = s.DB.WithContext(ctx).
		Model(&models.Violation{}).
		Distinct("student_id, violation_type").
		Where("exam_id = ? AND student_id IN ?", examID, ids).
		Order("student_id, violation_type").
		Scan(&pairs).Error
	if err != nil {
		return nil, err
	}
	byStudent := make(map[string][]string, len(rows))
	for _, p := range pairs {
		byStudent[p.StudentID] = append(byStudent[p.StudentID], p.ViolationType)
	}
	for i := range rows {
		rows[i].ViolationTypes = byStudent[rows[i].StudentID]
	}
	return rows, nil
}

// RecentViolations returns an exam's violations inside the window
// (default 5 minutes), newest first, capped at limit (default 50).
func (s *Store) RecentViolations(ctx context.Context, examID string, windowMinutes, limit int) ([]models.Violation, error) {
	if windowMinutes <= 0 {
		windowMinutes = DefaultRecentWindowMinutes
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	since := time.Now().UTC().Add(-time.Duration(windowMinutes) * time.Minute)

	var out []models.Violation
	err := s.DB.WithContext(ctx).
		Where("exam_id = ? AND timestamp >= ?", examID, since).
		Order("timestamp DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Review transitions a violation out of pending. Valid targets are
// reviewed, ignored and escalated; the transition is admin-driven and
// terminal with respect to automatic changes.
func (s *Store) Review(ctx context.Context, violationID, adminID, status, notes string) (*models.Violation, error) {
	switch status {
	case models.ViolationReviewed, models.ViolationIgnored, models.ViolationEscalated:
	default:
		return nil, &ValidationError{Field: "status", Reason: "must be reviewed, ignored or escalated"}
	}

	var v models.Violation
	if err := s.DB.WithContext(ctx).First(&v, "id = ?", violationID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	now := time.Now().UTC()
	v.Status = status
	v.ReviewedBy = &adminID
	v.ReviewedAt = &now
	v.AdminNotes = notes
	if err := s.DB.WithContext(ctx).Save(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// MarkReviewed is the common review action.
func (s *Store) MarkReviewed(ctx context.Context, violationID, adminID, notes string) (*models.Violation, error) {
	return s.Review(ctx, violationID, adminID, models.ViolationReviewed, notes)
}

// MarkIgnored dismisses a violation as a false positive.
func (s *Store) MarkIgnored(ctx context.Context, violationID, adminID, notes string) (*models.Violation, error) {
	return s.Review(ctx, violationID, adminID, models.ViolationIgnored, notes)
}

// MarkEscalated flags a violation for an academic integrity case.
func (s *Store) MarkEscalated(ctx context.Context, violationID, adminID, notes string) (*models.Violation, error) {
	return s.Review(ctx, violationID, adminID, models.ViolationEscalated, notes)
}
