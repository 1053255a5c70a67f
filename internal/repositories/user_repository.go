package repositories

import (
	"context"

	"github.com/studyhub/assessment-service/internal/models"
)

// UserRepository reads users from the identity provider. This service never writes them.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	HasRole(ctx context.Context, id string, role models.UserRole) (bool, error)
}
