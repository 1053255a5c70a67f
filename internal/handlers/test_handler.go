package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/studyhub/assessment-service/internal/models"
	"github.com/studyhub/assessment-service/internal/repositories"
	"github.com/studyhub/assessment-service/internal/services"
	"github.com/studyhub/assessment-service/internal/utils"
)

type TestHandler struct {
	BaseHandler
	testService services.TestService
}

func NewTestHandler(testService services.TestService, logger utils.Logger) *TestHandler {
	return &TestHandler{
		BaseHandler: NewBaseHandler(logger),
		testService: testService,
	}
}

// CreateTest creates a course or custom test definition
// @Summary Create test
// @Tags tests
// @Accept json
// @Produce json
// @Param test body services.CreateTestRequest true "Test definition"
// @Success 201 {object} SuccessResponse{data=services.TestResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /tests [post]
func (h *TestHandler) CreateTest(c *gin.Context) {
	h.LogRequest(c, "Creating test")

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req services.CreateTestRequest
	if !h.bindJSON(c, &req) {
		return
	}

	test, err := h.testService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusCreated, "Test created", test, test.Notice)
}

// GetTest returns a test definition
// @Summary Get test
// @Tags tests
// @Produce json
// @Param id path uint true "Test ID"
// @Success 200 {object} SuccessResponse{data=services.TestResponse}
// @Failure 404 {object} ErrorResponse
// @Router /tests/{id} [get]
func (h *TestHandler) GetTest(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	test, err := h.testService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "", test, nil)
}

// UpdateTest applies a partial update to a test definition
// @Summary Update test
// @Tags tests
// @Accept json
// @Produce json
// @Param id path uint true "Test ID"
// @Param test body services.UpdateTestRequest true "Fields to change"
// @Success 200 {object} SuccessResponse{data=services.TestResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /tests/{id} [put]
func (h *TestHandler) UpdateTest(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Updating test", "test_id", id)

	var req services.UpdateTestRequest
	if !h.bindJSON(c, &req) {
		return
	}

	test, err := h.testService.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "Test updated", test, test.Notice)
}

// DeleteTest removes a test that has no attempts
// @Summary Delete test
// @Tags tests
// @Param id path uint true "Test ID"
// @Success 200 {object} SuccessResponse
// @Failure 409 {object} ErrorResponse
// @Router /tests/{id} [delete]
func (h *TestHandler) DeleteTest(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Deleting test", "test_id", id)

	if err := h.testService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "Test deleted", nil, nil)
}

// ListTests lists tests visible to the caller
// @Summary List tests
// @Tags tests
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(10)
// @Param course_id query int false "Course"
// @Param lesson_id query int false "Lesson"
// @Param kind query string false "course or custom"
// @Param status query string false "draft, questions_pending or published"
// @Param exam_type query string false "Exam type"
// @Param q query string false "Search in title"
// @Param mine query bool false "Only tests created by the caller"
// @Success 200 {object} SuccessResponse{data=services.TestListResponse}
// @Router /tests [get]
func (h *TestHandler) ListTests(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	filters := parseTestFilters(c)
	if mine, _ := strconv.ParseBool(c.Query("mine")); mine {
		filters.CreatedBy = &userID
	}

	tests, err := h.testService.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "", tests, nil)
}

// SelectTopic adds one topic through the incremental picker
// @Summary Select topic
// @Tags tests
// @Accept json
// @Param id path uint true "Test ID"
// @Param topic body services.TopicRequest true "Topic"
// @Success 200 {object} SuccessResponse{data=services.TestResponse}
// @Router /tests/{id}/topics [post]
func (h *TestHandler) SelectTopic(c *gin.Context) {
	h.changeTopic(c, h.testService.SelectTopic)
}

// DeselectTopic removes one topic through the incremental picker
// @Summary Deselect topic
// @Tags tests
// @Accept json
// @Param id path uint true "Test ID"
// @Param topic body services.TopicRequest true "Topic"
// @Success 200 {object} SuccessResponse{data=services.TestResponse}
// @Router /tests/{id}/topics [delete]
func (h *TestHandler) DeselectTopic(c *gin.Context) {
	h.changeTopic(c, h.testService.DeselectTopic)
}

type topicChange func(ctx context.Context, id uint, req *services.TopicRequest, userID string) (*services.TestResponse, error)

func (h *TestHandler) changeTopic(c *gin.Context, change topicChange) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req services.TopicRequest
	if !h.bindJSON(c, &req) {
		return
	}

	test, err := change(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "", test, test.Notice)
}

// ReopenTest moves a published test back into review
// @Summary Reopen test
// @Tags tests
// @Param id path uint true "Test ID"
// @Success 200 {object} SuccessResponse{data=services.TestResponse}
// @Router /tests/{id}/reopen [post]
func (h *TestHandler) ReopenTest(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Reopening test", "test_id", id)

	test, err := h.testService.Reopen(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "Test reopened for review", test, test.Notice)
}

// PublishTest makes a reviewed test available to learners
// @Summary Publish test
// @Tags tests
// @Param id path uint true "Test ID"
// @Success 200 {object} SuccessResponse{data=services.TestResponse}
// @Failure 422 {object} ErrorResponse
// @Router /tests/{id}/publish [post]
func (h *TestHandler) PublishTest(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Publishing test", "test_id", id)

	test, err := h.testService.Publish(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "Test published", test, test.Notice)
}

func parseTestFilters(c *gin.Context) repositories.TestFilters {
	page := parseIntQuery(c, "page", 1)
	size := parseIntQuery(c, "size", 10)
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}

	filters := repositories.TestFilters{
		Search:    c.Query("q"),
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.DefaultQuery("sort_by", "created_at"),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
	}

	if courseID := parseIntQuery(c, "course_id", 0); courseID > 0 {
		id := uint(courseID)
		filters.CourseID = &id
	}
	if lessonID := parseIntQuery(c, "lesson_id", 0); lessonID > 0 {
		id := uint(lessonID)
		filters.LessonID = &id
	}
	if kind := c.Query("kind"); kind != "" {
		k := models.TestKind(kind)
		filters.Kind = &k
	}
	if status := c.Query("status"); status != "" {
		s := models.TestStatus(status)
		filters.Status = &s
	}
	if examType := c.Query("exam_type"); examType != "" {
		filters.ExamType = &examType
	}

	return filters
}
