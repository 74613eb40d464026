package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/zaqqye/proctor_backend/internal/models"
)

type ExamController struct {
	DB *gorm.DB
}

type examRequest struct {
	Title         string `json:"title" binding:"required"`
	MaxViolations int    `json:"max_violations"`
	Active        *bool  `json:"active"`
}

func (ec *ExamController) Create(c *gin.Context) {
	var req examRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	exam := models.Exam{
		Title:         req.Title,
		MaxViolations: req.MaxViolations,
		Active:        true,
	}
	if req.Active != nil {
		exam.Active = *req.Active
	}
	if err := ec.DB.Create(&exam).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			c.JSON(http.StatusConflict, gin.H{"error": "exam title already exists"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, exam)
}

func (ec *ExamController) List(c *gin.Context) {
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

	base := ec.DB.Model(&models.Exam{})
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		base = base.Where("title ILIKE ?", "%"+q+"%")
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	listQ := base.Order("created_at DESC")
	if !all {
		listQ = listQ.Offset((page - 1) * limit).Limit(limit)
	}
	var exams []models.Exam
	if err := listQ.Find(&exams).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	meta := gin.H{"total": total, "all": all}
	if !all {
		meta["limit"] = limit
		meta["page"] = page
	}
	c.JSON(http.StatusOK, gin.H{"data": exams, "meta": meta})
}

func (ec *ExamController) Get(c *gin.Context) {
	var exam models.Exam
	if err := ec.DB.First(&exam, "id = ?", c.Param("exam_id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "exam not found"})
		return
	}
	c.JSON(http.StatusOK, exam)
}

func (ec *ExamController) Update(c *gin.Context) {
	var exam models.Exam
	if err := ec.DB.First(&exam, "id = ?", c.Param("exam_id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "exam not found"})
		return
	}
	var req examRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	exam.Title = req.Title
	if req.MaxViolations > 0 {
		exam.MaxViolations = req.MaxViolations
	}
	if req.Active != nil {
		exam.Active = *req.Active
	}
	if err := ec.DB.Save(&exam).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, exam)
}

// Deactivate retires an exam instead of deleting it; violations and
// submissions keep their audit trail.
func (ec *ExamController) Deactivate(c *gin.Context) {
	var exam models.Exam
	if err := ec.DB.First(&exam, "id = ?", c.Param("exam_id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "exam not found"})
		return
	}
	exam.Active = false
	if err := ec.DB.Save(&exam).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "exam deactivated"})
}

type assignRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

func (ec *ExamController) assign(c *gin.Context, wantRole string) {
	examID := c.Param("exam_id")
	var exam models.Exam
	if err := ec.DB.First(&exam, "id = ?", examID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "exam not found"})
		return
	}

	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var user models.User
	if err := ec.DB.First(&user, req.UserID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}
	if strings.ToLower(user.Role) != wantRole {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user is not a " + wantRole})
		return
	}

	var err error
	if wantRole == "proctor" {
		err = ec.DB.Create(&models.ExamProctor{UserIDRef: user.ID, ExamIDRef: examID}).Error
	} else {
		err = ec.DB.Create(&models.ExamStudent{UserIDRef: user.ID, ExamIDRef: examID}).Error
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.Is(err, gorm.ErrDuplicatedKey) || (errors.As(err, &pgErr) && pgErr.Code == "23505") {
			c.JSON(http.StatusConflict, gin.H{"error": "already assigned"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "assigned"})
}

func (ec *ExamController) AssignProctor(c *gin.Context) { ec.assign(c, "proctor") }
func (ec *ExamController) AssignStudent(c *gin.Context) { ec.assign(c, "student") }

func (ec *ExamController) unassign(c *gin.Context, proctor bool) {
	examID := c.Param("exam_id")
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}

	var res *gorm.DB
	if proctor {
		res = ec.DB.Where("exam_id_ref = ? AND user_id_ref = ?", examID, userID).Delete(&models.ExamProctor{})
	} else {
		res = ec.DB.Where("exam_id_ref = ? AND user_id_ref = ?", examID, userID).Delete(&models.ExamStudent{})
	}
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "assignment not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "unassigned"})
}

func (ec *ExamController) UnassignProctor(c *gin.Context) { ec.unassign(c, true) }
func (ec *ExamController) UnassignStudent(c *gin.Context) { ec.unassign(c, false) }

func (ec *ExamController) listAssigned(c *gin.Context, table string) {
	examID := c.Param("exam_id")
	type row struct {
		UserID   uint   `json:"id"`
		FullName string `json:"full_name"`
		Email    string `json:"email"`
	}
	var rows []row
	err := ec.DB.Table("users AS u").
		Select("u.id AS user_id, u.full_name, u.email").
		Joins("JOIN "+table+" a ON a.user_id_ref = u.id").
		Where("a.exam_id_ref = ?", examID).
		Order("u.full_name").
		Scan(&rows).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func (ec *ExamController) ListProctors(c *gin.Context) { ec.listAssigned(c, "exam_proctors") }
func (ec *ExamController) ListStudents(c *gin.Context) { ec.listAssigned(c, "exam_students") }
