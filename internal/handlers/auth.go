package handlers

import (
	"net/http"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/studyhub/assessment-service/internal/config"
	"github.com/studyhub/assessment-service/internal/models"
	"github.com/studyhub/assessment-service/internal/repositories"
	"github.com/studyhub/assessment-service/internal/utils"
)

// Keys the authenticator leaves on the gin context
const (
	ctxUserID   = "user_id"
	ctxUserRole = "user_role"
	ctxUser     = "user"
)

type tokenParser interface {
	ParseJwtToken(token string) (*casdoorsdk.Claims, error)
}

// Authenticator turns Casdoor bearer tokens into request users. The stored
// profile wins; the token claims are used when the lookup fails.
type Authenticator struct {
	BaseHandler
	tokens tokenParser
	users  repositories.UserRepository
}

func NewAuthenticator(cfg config.CasdoorConfig, users repositories.UserRepository, logger utils.Logger) *Authenticator {
	client := casdoorsdk.NewClient(cfg.Endpoint, cfg.ClientID, cfg.ClientSecret, cfg.Cert, cfg.Organization, cfg.Application)
	return newAuthenticator(client, users, logger)
}

func newAuthenticator(tokens tokenParser, users repositories.UserRepository, logger utils.Logger) *Authenticator {
	return &Authenticator{
		BaseHandler: NewBaseHandler(logger),
		tokens:      tokens,
		users:       users,
	}
}

// Handler rejects requests without a valid token with 401
func (a *Authenticator) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			a.respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or malformed bearer token", nil)
			return
		}

		claims, err := a.tokens.ParseJwtToken(token)
		if err != nil || claims == nil || claims.Id == "" {
			a.LogError(c, "Rejected token", err)
			a.respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token", nil)
			return
		}

		user, err := a.users.GetByID(c.Request.Context(), claims.Id)
		if err != nil || user == nil {
			user = userFromClaims(claims)
		}

		c.Set(ctxUserID, user.ID)
		c.Set(ctxUserRole, user.Role)
		c.Set(ctxUser, user)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func userFromClaims(claims *casdoorsdk.Claims) *models.User {
	user := &models.User{
		ID:       claims.Id,
		FullName: claims.DisplayName,
		Email:    claims.Email,
		Role:     roleFromCasdoorType(claims.Type),
	}
	if claims.Avatar != "" {
		avatar := claims.Avatar
		user.AvatarURL = &avatar
	}
	return user
}

// roleFromCasdoorType maps the Casdoor account type; unknown types are learners
func roleFromCasdoorType(accountType string) models.UserRole {
	switch strings.ToLower(strings.TrimSpace(accountType)) {
	case "admin", "administrator":
		return models.RoleAdmin
	case "teacher", "instructor", "educator":
		return models.RoleTeacher
	}
	return models.RoleLearner
}

func userIDFromContext(c *gin.Context) string {
	id, _ := c.Get(ctxUserID)
	userID, _ := id.(string)
	return userID
}
