package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/studyhub/assessment-service/internal/services"
	"github.com/studyhub/assessment-service/internal/utils"
)

// AttemptDetailHandler serves graded history, plan edits and certificates
type AttemptDetailHandler struct {
	BaseHandler
	submissionService  services.SubmissionService
	planService        services.PlanService
	certificateService services.CertificateService
}

func NewAttemptDetailHandler(
	submissionService services.SubmissionService,
	planService services.PlanService,
	certificateService services.CertificateService,
	logger utils.Logger,
) *AttemptDetailHandler {
	return &AttemptDetailHandler{
		BaseHandler:        NewBaseHandler(logger),
		submissionService:  submissionService,
		planService:        planService,
		certificateService: certificateService,
	}
}

// GetDetail returns one graded attempt with its analysis
// @Summary Get attempt detail
// @Tags attempt-details
// @Produce json
// @Param id path uint true "Attempt detail ID"
// @Success 200 {object} SuccessResponse{data=services.AttemptDetailResponse}
// @Router /attempt-details/{id} [get]
func (h *AttemptDetailHandler) GetDetail(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	detail, err := h.submissionService.GetDetail(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "", detail, nil)
}

// ListHistory returns the caller's graded attempts of a test, newest first
// @Summary Attempt history
// @Tags attempt-details
// @Produce json
// @Param test_id path uint true "Test ID"
// @Success 200 {object} SuccessResponse{data=services.HistoryResponse}
// @Router /attempt-details/history/{test_id} [get]
func (h *AttemptDetailHandler) ListHistory(c *gin.Context) {
	testID, ok := h.parseIDParam(c, "test_id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	history, err := h.submissionService.ListHistory(c.Request.Context(), userID, testID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "", history, nil)
}

// EditPlan patches the personalized plan of a graded attempt
// @Summary Edit study plan
// @Description Send expected_version to reject edits based on a stale copy
// @Tags attempt-details
// @Accept json
// @Produce json
// @Param id path uint true "Attempt detail ID"
// @Param If-Match header int false "Expected version"
// @Param patch body services.PlanPatch true "Plan changes"
// @Success 200 {object} SuccessResponse{data=services.AttemptDetailResponse}
// @Failure 409 {object} ErrorResponse
// @Router /attempt-details/{id}/plan [patch]
func (h *AttemptDetailHandler) EditPlan(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Editing plan", "attempt_detail_id", id)

	var patch services.PlanPatch
	if !h.bindJSON(c, &patch) {
		return
	}
	if patch.ExpectedVersion == nil {
		if version, err := strconv.Atoi(c.GetHeader("If-Match")); err == nil {
			patch.ExpectedVersion = &version
		}
	}

	detail, err := h.planService.EditPlan(c.Request.Context(), id, &patch, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "Plan saved", detail, detail.Notice)
}

// GetCertificate returns the certificate earned by a graded attempt
// @Summary Get certificate
// @Tags attempt-details
// @Produce json
// @Param id path uint true "Attempt detail ID"
// @Success 200 {object} SuccessResponse{data=services.CertificateResponse}
// @Failure 404 {object} ErrorResponse
// @Router /attempt-details/{id}/certificate [get]
func (h *AttemptDetailHandler) GetCertificate(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	certificate, err := h.certificateService.GetCertificate(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "", certificate, certificate.Notice)
}
