package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyhub/assessment-service/internal/services"
	"github.com/studyhub/assessment-service/internal/utils"
)

type ExportHandler struct {
	BaseHandler
	exportService services.ExportService
}

func NewExportHandler(exportService services.ExportService, logger utils.Logger) *ExportHandler {
	return &ExportHandler{
		BaseHandler:   NewBaseHandler(logger),
		exportService: exportService,
	}
}

// DownloadHistory streams the caller's history of a test as a workbook
// @Summary Download history workbook
// @Tags exports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param test_id path uint true "Test ID"
// @Success 200 {file} file
// @Router /exports/history/{test_id} [get]
func (h *ExportHandler) DownloadHistory(c *gin.Context) {
	testID, ok := h.parseIDParam(c, "test_id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	file, err := h.exportService.ExportHistory(c.Request.Context(), userID, testID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.FileName))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// PublishHistory uploads the history workbook and returns its URL
// @Summary Publish history workbook
// @Tags exports
// @Produce json
// @Param test_id path uint true "Test ID"
// @Success 201 {object} SuccessResponse{data=services.PublishedExport}
// @Failure 503 {object} ErrorResponse
// @Router /exports/history/{test_id}/publish [post]
func (h *ExportHandler) PublishHistory(c *gin.Context) {
	testID, ok := h.parseIDParam(c, "test_id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Publishing history export", "test_id", testID)

	published, err := h.exportService.PublishHistory(c.Request.Context(), userID, testID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusCreated, "Export published", published, nil)
}
