package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/zaqqye/proctor_backend/internal/models"
	"github.com/zaqqye/proctor_backend/internal/ws"
)

type SubmissionController struct {
	DB   *gorm.DB
	Hubs *ws.Hubs
}

type submitRequest struct {
	AutoSubmit bool `json:"auto_submit"`
	Answers    []struct {
		QuestionID string `json:"question_id" binding:"required"`
		AnswerText string `json:"answer_text"`
	} `json:"answers"`
}

// Submit finalizes the caller's attempt for an exam. auto_submit tags
// attempts force-closed by the violation threshold. One submission per
// exam and student; a resubmit gets 409.
func (sc *SubmissionController) Submit(c *gin.Context) {
	uVal, _ := c.Get("user")
	user := uVal.(models.User)
	if strings.ToLower(user.Role) != "student" {
		c.JSON(http.StatusForbidden, gin.H{"error": "only students submit exams"})
		return
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	examID := c.Param("exam_id")
	var exam models.Exam
	if err := sc.DB.First(&exam, "id = ?", examID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam_id"})
		return
	}

	status := models.SubmissionSubmitted
	if req.AutoSubmit {
		status = models.SubmissionAutoSubmitted
	}
	sub := models.ExamSubmission{
		ExamID:        examID,
		StudentID:     user.UserID,
		Status:        status,
		AutoSubmitted: req.AutoSubmit,
		SubmittedAt:   time.Now().UTC(),
	}

	err := sc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&sub).Error; err != nil {
			return err
		}
		for _, a := range req.Answers {
			ans := models.SubmissionAnswer{
				SubmissionID: sub.ID,
				QuestionID:   a.QuestionID,
				AnswerText:   a.AnswerText,
			}
			if err := tx.Create(&ans).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.Is(err, gorm.ErrDuplicatedKey) || (errors.As(err, &pgErr) && pgErr.Code == "23505") {
			c.JSON(http.StatusConflict, gin.H{"error": "exam already submitted"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if sc.Hubs != nil && req.AutoSubmit {
		sc.Hubs.Student.Notify(user.UserID, ws.StudentMessage{
			Type:    "auto_submitted",
			Message: "Your exam was submitted automatically after repeated violations.",
		})
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":             sub.ID,
		"exam_id":        sub.ExamID,
		"status":         sub.Status,
		"auto_submitted": sub.AutoSubmitted,
		"submitted_at":   sub.SubmittedAt,
	})
}

type scoreRequest struct {
	Score float64 `json:"score" binding:"min=0"`
}

// UpdateScore sets the manual grade for one free-form answer and
// refreshes the submission's total.
func (sc *SubmissionController) UpdateScore(c *gin.Context) {
	uVal, _ := c.Get("user")
	grader := uVal.(models.User)

	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	submissionID := c.Param("submission_id")
	questionID := c.Param("question_id")

	var ans models.SubmissionAnswer
	err := sc.DB.Where("submission_id = ? AND question_id = ?", submissionID, questionID).First(&ans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "answer not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	ans.Score = &req.Score
	ans.GradedBy = &grader.UserID
	ans.GradedAt = &now

	err = sc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&ans).Error; err != nil {
			return err
		}
		var total float64
		if err := tx.Model(&models.SubmissionAnswer{}).
			Where("submission_id = ? AND score IS NOT NULL", submissionID).
			Select("COALESCE(SUM(score), 0)").Scan(&total).Error; err != nil {
			return err
		}
		return tx.Model(&models.ExamSubmission{}).
			Where("id = ?", submissionID).
			Update("total_score", total).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"submission_id": submissionID,
		"question_id":   questionID,
		"score":         req.Score,
		"graded_by":     grader.UserID,
		"graded_at":     now,
	})
}
