package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyhub/assessment-service/internal/models"
	"github.com/studyhub/assessment-service/internal/utils"
)

type UserHandler struct {
	BaseHandler
}

func NewUserHandler(logger utils.Logger) *UserHandler {
	return &UserHandler{BaseHandler: NewBaseHandler(logger)}
}

// GetCurrentUser returns the authenticated user and their learning profile
// @Summary Current user
// @Tags users
// @Produce json
// @Success 200 {object} SuccessResponse{data=models.User}
// @Failure 401 {object} ErrorResponse
// @Router /me [get]
func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	user, ok := c.Get(ctxUser)
	if !ok {
		// auth ran without resolving a profile
		h.Respond(c, http.StatusOK, "", &models.User{ID: userID, Role: roleFromContext(c)}, nil)
		return
	}

	h.Respond(c, http.StatusOK, "", user, nil)
}

func roleFromContext(c *gin.Context) models.UserRole {
	if role, ok := c.Get(ctxUserRole); ok {
		if r, ok := role.(models.UserRole); ok {
			return r
		}
	}
	return models.RoleLearner
}
