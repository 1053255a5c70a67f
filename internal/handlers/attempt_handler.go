package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyhub/assessment-service/internal/services"
	"github.com/studyhub/assessment-service/internal/utils"
)

type AttemptHandler struct {
	BaseHandler
	attemptService    services.AttemptService
	submissionService services.SubmissionService
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	submissionService services.SubmissionService,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:       NewBaseHandler(logger),
		attemptService:    attemptService,
		submissionService: submissionService,
	}
}

// StartAttempt starts or resumes an attempt
// @Summary Start attempt
// @Description Returns the in-progress attempt when one exists
// @Tags attempts
// @Accept json
// @Produce json
// @Param attempt body services.StartAttemptRequest true "Start attempt data"
// @Success 201 {object} SuccessResponse{data=services.AttemptResponse}
// @Success 200 {object} SuccessResponse{data=services.AttemptResponse}
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /attempts/start [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	h.LogRequest(c, "Starting attempt")

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req services.StartAttemptRequest
	if !h.bindJSON(c, &req) {
		return
	}

	attempt, err := h.attemptService.Start(c.Request.Context(), req.TestID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if attempt.Resumed {
		status = http.StatusOK
	}
	h.Respond(c, status, "", attempt, attempt.Notice)
}

// GetCurrentAttempt returns the in-progress or latest attempt of the caller
// @Summary Current attempt
// @Tags attempts
// @Produce json
// @Param test_id path uint true "Test ID"
// @Success 200 {object} SuccessResponse{data=services.AttemptResponse}
// @Failure 404 {object} ErrorResponse
// @Router /attempts/current/{test_id} [get]
func (h *AttemptHandler) GetCurrentAttempt(c *gin.Context) {
	testID, ok := h.parseIDParam(c, "test_id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.GetCurrent(c.Request.Context(), testID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "", attempt, attempt.Notice)
}

// GetRemainingAttempts reports how many attempts the caller has left
// @Summary Remaining attempts
// @Tags attempts
// @Produce json
// @Param test_id path uint true "Test ID"
// @Success 200 {object} SuccessResponse{data=services.RemainingAttemptsResponse}
// @Router /attempts/remaining/{test_id} [get]
func (h *AttemptHandler) GetRemainingAttempts(c *gin.Context) {
	testID, ok := h.parseIDParam(c, "test_id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	remaining, err := h.attemptService.GetRemaining(c.Request.Context(), testID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "", remaining, nil)
}

// GetAttempt returns one attempt
// @Summary Get attempt
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} SuccessResponse{data=services.AttemptResponse}
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "", attempt, nil)
}

// SaveProgress stores answers of an in-progress attempt
// @Summary Save answers
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param answers body services.SaveProgressRequest true "Answers"
// @Success 200 {object} SuccessResponse{data=services.AttemptResponse}
// @Router /attempts/{id}/answers [put]
func (h *AttemptHandler) SaveProgress(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req services.SaveProgressRequest
	if !h.bindJSON(c, &req) {
		return
	}

	attempt, err := h.attemptService.SaveProgress(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "Progress saved", attempt, attempt.Notice)
}

// SubmitAttempt grades an attempt and records its result
// @Summary Submit attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param attempt body services.SubmitAttemptRequest true "Final answers"
// @Success 200 {object} SuccessResponse{data=services.AttemptDetailResponse}
// @Failure 502 {object} ErrorResponse
// @Router /attempts/{id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Submitting attempt", "attempt_id", id)

	var req services.SubmitAttemptRequest
	if !h.bindJSON(c, &req) {
		return
	}

	detail, err := h.submissionService.Submit(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "Attempt submitted", detail, detail.Notice)
}
