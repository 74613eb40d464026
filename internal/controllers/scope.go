package controllers

import (
	"gorm.io/gorm"

	"github.com/zaqqye/proctor_backend/internal/models"
)

// allowedExamIDsFor returns the exam IDs the user may see. Admins get
// (nil, true) meaning all; proctors get their assignments; students get
// an empty set (they never read other attempts' data through these
// endpoints).
func allowedExamIDsFor(db *gorm.DB, user models.User) ([]string, bool, error) {
	if user.Role == "admin" {
		return nil, true, nil
	}
	if user.Role == "proctor" {
		var m []models.ExamProctor
		if err := db.Where("user_id_ref = ?", user.ID).Find(&m).Error; err != nil {
			return nil, false, err
		}
		ids := make([]string, 0, len(m))
		for _, r := range m {
			ids = append(ids, r.ExamIDRef)
		}
		return ids, false, nil
	}
	return []string{}, false, nil
}

func examAllowed(allowed []string, isAdmin bool, examID string) bool {
	if isAdmin {
		return true
	}
	for _, id := range allowed {
		if id == examID {
			return true
		}
	}
	return false
}
