package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/zaqqye/proctor_backend/internal/models"
	"github.com/zaqqye/proctor_backend/internal/violations"
)

// ReportController serves the admin/proctor aggregation endpoints over
// the violation store.
type ReportController struct {
	DB    *gorm.DB
	Store *violations.Store
}

func (rc *ReportController) scopeCheck(c *gin.Context) (string, bool) {
	uVal, _ := c.Get("user")
	user := uVal.(models.User)

	examID := c.Param("exam_id")
	allowed, isAdmin, err := allowedExamIDsFor(rc.DB, user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return "", false
	}
	if !examAllowed(allowed, isAdmin, examID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed for this exam"})
		return "", false
	}
	return examID, true
}

// Summary returns per-type counts for an exam, highest count first.
func (rc *ReportController) Summary(c *gin.Context) {
	examID, ok := rc.scopeCheck(c)
	if !ok {
		return
	}
	rows, err := rc.Store.SummaryByType(c.Request.Context(), examID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

// HighRisk lists students at or above the violation threshold.
func (rc *ReportController) HighRisk(c *gin.Context) {
	examID, ok := rc.scopeCheck(c)
	if !ok {
		return
	}
	min := violations.DefaultHighRiskThreshold
	if v := c.Query("min_violations"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			min = n
		}
	}
	rows, err := rc.Store.HighRiskStudents(c.Request.Context(), examID, min)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "meta": gin.H{"min_violations": min}})
}

// Recent returns the newest violations inside the rolling window.
func (rc *ReportController) Recent(c *gin.Context) {
	examID, ok := rc.scopeCheck(c)
	if !ok {
		return
	}
	window := violations.DefaultRecentWindowMinutes
	limit := violations.DefaultRecentLimit
	if v := c.Query("window_minutes"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			window = n
		}
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	rows, err := rc.Store.RecentViolations(c.Request.Context(), examID, window, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "meta": gin.H{"window_minutes": window, "limit": limit}})
}
