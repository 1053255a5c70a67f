package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/studyhub/assessment-service/internal/models"
	"github.com/studyhub/assessment-service/internal/services"
	"github.com/studyhub/assessment-service/internal/utils"
	"github.com/studyhub/assessment-service/internal/validator"
)

// SuccessResponse wraps every successful payload
type SuccessResponse struct {
	Message   string         `json:"message,omitempty"`
	Data      interface{}    `json:"data,omitempty"`
	Notice    *models.Notice `json:"notice,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ErrorResponse is returned for every failed request
type ErrorResponse struct {
	Error            string                     `json:"error"`
	Message          string                     `json:"message"`
	Code             string                     `json:"code,omitempty"`
	Details          interface{}                `json:"details,omitempty"`
	ValidationErrors validator.ValidationErrors `json:"validation_errors,omitempty"`
	Timestamp        time.Time                  `json:"timestamp"`
	Path             string                     `json:"path,omitempty"`
}

type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) log(c *gin.Context) utils.Logger {
	return utils.FromContext(c, h.logger)
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	h.log(c).Debug(msg, append(args, "method", c.Request.Method, "path", c.FullPath())...)
}

func (h *BaseHandler) LogError(c *gin.Context, msg string, err error, args ...any) {
	h.log(c).Error(msg, append(args, "error", err, "path", c.FullPath())...)
}

// Respond writes a SuccessResponse carrying the operation's notice
func (h *BaseHandler) Respond(c *gin.Context, status int, message string, data interface{}, notice *models.Notice) {
	c.JSON(status, SuccessResponse{
		Message:   message,
		Data:      data,
		Notice:    notice,
		Timestamp: time.Now().UTC(),
	})
}

func (h *BaseHandler) RespondWithError(c *gin.Context, status int, message string, err error) {
	resp := ErrorResponse{
		Error:     errorCode(status),
		Message:   message,
		Timestamp: time.Now().UTC(),
		Path:      c.Request.URL.Path,
	}
	if err != nil {
		resp.Details = err.Error()
	}
	c.AbortWithStatusJSON(status, resp)
}

func (h *BaseHandler) respondError(c *gin.Context, status int, code, message string, details interface{}) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     errorCode(status),
		Message:   message,
		Code:      code,
		Details:   details,
		Timestamp: time.Now().UTC(),
		Path:      c.Request.URL.Path,
	})
}

// handleServiceError maps service errors to HTTP responses
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var (
		validationErrs validator.ValidationErrors
		permissionErr  *services.PermissionError
		limitErr       *services.AttemptLimitError
		staleErr       *services.StaleWriteConflict
		generationErr  *services.GenerationFailure
		submissionErr  *services.SubmissionError
	)

	switch {
	case errors.As(err, &validationErrs):
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Error:            errorCode(http.StatusBadRequest),
			Message:          "Validation failed",
			Code:             "VALIDATION_FAILED",
			ValidationErrors: validationErrs,
			Timestamp:        time.Now().UTC(),
			Path:             c.Request.URL.Path,
		})

	case errors.As(err, &permissionErr):
		h.respondError(c, http.StatusForbidden, "PERMISSION_DENIED", "You do not have permission to perform this action", permissionErr.Reason)

	case errors.Is(err, services.ErrTestNotFound),
		errors.Is(err, services.ErrCourseNotFound),
		errors.Is(err, services.ErrLessonNotFound),
		errors.Is(err, services.ErrQuestionNotFound),
		errors.Is(err, services.ErrOptionNotFound),
		errors.Is(err, services.ErrAttemptNotFound),
		errors.Is(err, services.ErrNoPriorAttempt),
		errors.Is(err, services.ErrAttemptDetailNotFound),
		errors.Is(err, services.ErrCertificateNotFound),
		errors.Is(err, services.ErrUserNotFound):
		h.respondError(c, http.StatusNotFound, "NOT_FOUND", capitalize(err.Error()), nil)

	case errors.As(err, &limitErr):
		h.respondError(c, http.StatusConflict, "ATTEMPT_LIMIT_REACHED", "No attempts remaining for this test", gin.H{
			"max_attempts": limitErr.MaxAttempts,
			"used":         limitErr.Used,
			"remaining":    limitErr.Remaining,
		})

	case errors.As(err, &staleErr):
		h.respondError(c, http.StatusConflict, "STALE_WRITE", "The plan was changed by someone else. Reload and try again", gin.H{
			"expected_version": staleErr.Expected,
			"actual_version":   staleErr.Actual,
		})

	case errors.Is(err, services.ErrTestPublished), errors.Is(err, services.ErrTestHasAttempts):
		h.respondError(c, http.StatusConflict, "CONFLICT", capitalize(err.Error()), nil)

	case errors.Is(err, services.ErrTestNotPublished),
		errors.Is(err, services.ErrAttemptNotEditable),
		errors.Is(err, services.ErrAttemptNotGraded),
		errors.Is(err, services.ErrNoQuestions):
		h.respondError(c, http.StatusUnprocessableEntity, "INVALID_STATE", capitalize(err.Error()), nil)

	case errors.As(err, &generationErr):
		h.LogError(c, "Question generation failed", err, "test_id", generationErr.TestID)
		h.respondError(c, http.StatusBadGateway, "GENERATION_FAILED", "Question generation failed. The test is waiting for questions; try again", nil)

	case errors.As(err, &submissionErr) && submissionErr.Step == services.StepGrade:
		h.LogError(c, "Grading failed", err, "attempt_id", submissionErr.AttemptID)
		h.respondError(c, http.StatusBadGateway, "GRADING_FAILED", "Your answers were saved but grading failed. Submit again to retry", gin.H{
			"attempt_id": submissionErr.AttemptID,
			"step":       submissionErr.Step,
		})

	case errors.Is(err, services.ErrExportUnavailable):
		h.respondError(c, http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", capitalize(err.Error()), nil)

	default:
		h.LogError(c, "Unhandled service error", err)
		h.respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}

// currentUserID aborts with 401 when the auth middleware did not run
func (h *BaseHandler) currentUserID(c *gin.Context) (string, bool) {
	userID := userIDFromContext(c)
	if userID == "" {
		h.respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated", nil)
		return "", false
	}
	return userID, true
}

func (h *BaseHandler) parseIDParam(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid "+param, err)
		return 0, false
	}
	return uint(id), true
}

func (h *BaseHandler) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err)
		return false
	}
	return true
}

func parseIntQuery(c *gin.Context, param string, defaultValue int) int {
	value, err := strconv.Atoi(c.Query(param))
	if err != nil {
		return defaultValue
	}
	return value
}

func errorCode(status int) string {
	return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
