package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/zaqqye/proctor_backend/internal/models"
	"github.com/zaqqye/proctor_backend/internal/telemetry"
	"github.com/zaqqye/proctor_backend/internal/violations"
	"github.com/zaqqye/proctor_backend/internal/ws"
)

type ViolationController struct {
	DB        *gorm.DB
	Store     *violations.Store
	Hubs      *ws.Hubs
	Telemetry *telemetry.Publisher
}

type logViolationRequest struct {
	ExamID           string         `json:"exam_id" binding:"required"`
	ViolationType    string         `json:"violation_type" binding:"required"`
	Timestamp        *time.Time     `json:"timestamp"`
	ViolationCount   int            `json:"violation_count"`
	CausedAutoSubmit bool           `json:"caused_auto_submit"`
	Metadata         map[string]any `json:"metadata"`
}

// Log records one violation reported by a student's proctoring client.
// Best-effort side channels (dashboard broadcast, telemetry) never fail
// the request.
func (vc *ViolationController) Log(c *gin.Context) {
	uVal, _ := c.Get("user")
	user := uVal.(models.User)
	if strings.ToLower(user.Role) != "student" {
		c.JSON(http.StatusForbidden, gin.H{"error": "only students log violations"})
		return
	}

	var req logViolationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var exam models.Exam
	if err := vc.DB.First(&exam, "id = ?", req.ExamID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam_id"})
		return
	}

	meta := req.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	if _, ok := meta["user_agent"]; !ok {
		meta["user_agent"] = c.Request.UserAgent()
	}
	if _, ok := meta["ip"]; !ok {
		meta["ip"] = c.ClientIP()
	}

	in := violations.Input{
		ExamID:           req.ExamID,
		StudentID:        user.UserID,
		StudentName:      user.FullName,
		StudentEmail:     user.Email,
		ViolationType:    req.ViolationType,
		ViolationCount:   req.ViolationCount,
		CausedAutoSubmit: req.CausedAutoSubmit,
		Metadata:         meta,
	}
	if req.Timestamp != nil {
		in.Timestamp = *req.Timestamp
	}

	v, err := vc.Store.Record(c.Request.Context(), in)
	if err != nil {
		var verr *violations.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	payload := ws.ViolationPayload{
		ID:               v.ID,
		ExamID:           v.ExamID,
		StudentID:        v.StudentID,
		StudentName:      v.StudentName,
		ViolationType:    v.ViolationType,
		Severity:         v.Severity,
		ViolationCount:   v.ViolationCount,
		CausedAutoSubmit: v.CausedAutoSubmit,
		Timestamp:        v.Timestamp,
		Metadata:         meta,
	}
	if vc.Hubs != nil {
		vc.Hubs.Violations.Broadcast(payload)
	}
	vc.Telemetry.PublishViolation(c.Request.Context(), payload)

	c.JSON(http.StatusCreated, gin.H{"success": true, "id": v.ID, "severity": v.Severity})
}

// List returns an exam's violations with pagination, sorting and
// filtering, scoped by the caller's exam assignments.
func (vc *ViolationController) List(c *gin.Context) {
	uVal, _ := c.Get("user")
	user := uVal.(models.User)

	examID := c.Param("exam_id")
	allowed, isAdmin, err := allowedExamIDsFor(vc.DB, user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !examAllowed(allowed, isAdmin, examID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed for this exam"})
		return
	}

	all := strings.EqualFold(c.Query("all"), "true") || c.Query("all") == "1"
	limit := 20
	page := 1
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := c.Query("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	sortBy := strings.ToLower(c.DefaultQuery("sort_by", "timestamp"))
	sortDir := strings.ToUpper(c.DefaultQuery("sort_dir", "DESC"))
	if sortDir != "ASC" && sortDir != "DESC" {
		sortDir = "DESC"
	}
	allowedSorts := map[string]string{
		"timestamp":      "timestamp",
		"violation_type": "violation_type",
		"severity":       "severity",
		"status":         "status",
		"student_id":     "student_id",
	}
	sortCol, ok := allowedSorts[sortBy]
	if !ok {
		sortCol = "timestamp"
	}
	order := sortCol + " " + sortDir

	base := vc.DB.Model(&models.Violation{}).Where("exam_id = ?", examID)
	if t := strings.TrimSpace(c.Query("violation_type")); t != "" {
		base = base.Where("violation_type = ?", t)
	}
	if st := strings.TrimSpace(c.Query("status")); st != "" {
		base = base.Where("status = ?", st)
	}
	if sev := strings.TrimSpace(c.Query("severity")); sev != "" {
		base = base.Where("severity = ?", sev)
	}
	if sid := strings.TrimSpace(c.Query("student_id")); sid != "" {
		base = base.Where("student_id = ?", sid)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	listQ := base.Order(order)
	if !all {
		listQ = listQ.Offset((page - 1) * limit).Limit(limit)
	}
	var items []models.Violation
	if err := listQ.Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	meta := gin.H{"total": total, "all": all}
	if !all {
		meta["limit"] = limit
		meta["page"] = page
		meta["sort_by"] = sortBy
		meta["sort_dir"] = sortDir
	}
	c.JSON(http.StatusOK, gin.H{"data": items, "meta": meta})
}

type reviewRequest struct {
	Action string `json:"action" binding:"required"`
	Notes  string `json:"notes"`
}

// Review transitions a violation to reviewed/ignored/escalated.
func (vc *ViolationController) Review(c *gin.Context) {
	uVal, _ := c.Get("user")
	user := uVal.(models.User)

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	v, err := vc.Store.Review(c.Request.Context(), c.Param("id"), user.UserID, req.Action, req.Notes)
	if err != nil {
		if errors.Is(err, violations.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "violation not found"})
			return
		}
		var verr *violations.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":          v.ID,
		"status":      v.Status,
		"reviewed_by": v.ReviewedBy,
		"reviewed_at": v.ReviewedAt,
		"admin_notes": v.AdminNotes,
	})
}
