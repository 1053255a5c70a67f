package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyhub/assessment-service/internal/services"
	"github.com/studyhub/assessment-service/internal/utils"
)

type QuestionHandler struct {
	BaseHandler
	questionService services.QuestionService
}

func NewQuestionHandler(questionService services.QuestionService, logger utils.Logger) *QuestionHandler {
	return &QuestionHandler{
		BaseHandler:     NewBaseHandler(logger),
		questionService: questionService,
	}
}

// GenerateQuestions synthesizes the question set of a test
// @Summary Generate questions
// @Description Empty body fields default from the test definition
// @Tags questions
// @Accept json
// @Produce json
// @Param id path uint true "Test ID"
// @Param request body services.GenerationRequest false "Generation overrides"
// @Success 200 {object} SuccessResponse{data=services.GenerationHandle}
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /tests/{id}/generate [post]
func (h *QuestionHandler) GenerateQuestions(c *gin.Context) {
	testID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Generating questions", "test_id", testID)

	var req services.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	handle, err := h.questionService.RequestGeneration(c.Request.Context(), testID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "Questions generated", handle, handle.Notice)
}

// ListQuestions returns the questions of a test in position order
// @Summary List questions
// @Tags questions
// @Produce json
// @Param id path uint true "Test ID"
// @Success 200 {object} SuccessResponse{data=services.QuestionListResponse}
// @Router /tests/{id}/questions [get]
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	testID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	questions, err := h.questionService.List(c.Request.Context(), testID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "", questions, nil)
}

// AddQuestion adds a hand-written question
// @Summary Add question
// @Tags questions
// @Accept json
// @Produce json
// @Param id path uint true "Test ID"
// @Param question body services.CreateQuestionRequest true "Question"
// @Success 201 {object} SuccessResponse{data=models.Question}
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /tests/{id}/questions [post]
func (h *QuestionHandler) AddQuestion(c *gin.Context) {
	testID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req services.CreateQuestionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	question, err := h.questionService.Add(c.Request.Context(), testID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusCreated, "Question added", question, nil)
}

// UpdateQuestion edits a question during review
// @Summary Update question
// @Tags questions
// @Accept json
// @Produce json
// @Param id path uint true "Question ID"
// @Param question body services.UpdateQuestionRequest true "Fields to change"
// @Success 200 {object} SuccessResponse{data=models.Question}
// @Router /questions/{id} [put]
func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req services.UpdateQuestionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	question, err := h.questionService.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "Question updated", question, nil)
}

// DeleteQuestion removes a question during review
// @Summary Delete question
// @Tags questions
// @Param id path uint true "Question ID"
// @Success 200 {object} SuccessResponse
// @Router /questions/{id} [delete]
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Deleting question", "question_id", id)

	notice, err := h.questionService.Delete(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "Question deleted", nil, notice)
}

// SetCorrectOption marks one option of a multiple choice question as correct
// @Summary Set correct option
// @Tags questions
// @Accept json
// @Produce json
// @Param id path uint true "Question ID"
// @Param request body services.SetCorrectOptionRequest true "Option"
// @Success 200 {object} SuccessResponse{data=models.Question}
// @Router /questions/{id}/correct-option [put]
func (h *QuestionHandler) SetCorrectOption(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req services.SetCorrectOptionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	question, err := h.questionService.SetCorrectOption(c.Request.Context(), id, req.OptionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Respond(c, http.StatusOK, "Correct option updated", question, nil)
}
