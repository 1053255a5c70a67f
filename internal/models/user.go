package models

import "time"

type UserRole string

const (
	RoleLearner UserRole = "learner"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

// User is read from the identity provider and never stored by this service.
type User struct {
	ID       string   `json:"id"`
	FullName string   `json:"full_name"`
	Email    string   `json:"email"`
	Role     UserRole `json:"role"`

	AvatarURL *string `json:"avatar_url"`

	// Learning profile forwarded to the grading service
	CurrentLevel        string   `json:"current_level"`
	StudyHoursPerWeek   int      `json:"study_hours_per_week"`
	LearningGoals       string   `json:"learning_goals"`
	LearningPreferences []string `json:"learning_preferences"`
	StudyMethods        []string `json:"study_methods"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsStaff reports whether the user may author course tests.
func (u *User) IsStaff() bool {
	return u.Role == RoleTeacher || u.Role == RoleAdmin
}
