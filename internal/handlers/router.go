package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/studyhub/assessment-service/internal/services"
	"github.com/studyhub/assessment-service/internal/utils"
)

const healthCheckTimeout = 3 * time.Second

type HandlerManager struct {
	testHandler          *TestHandler
	questionHandler      *QuestionHandler
	attemptHandler       *AttemptHandler
	attemptDetailHandler *AttemptDetailHandler
	exportHandler        *ExportHandler
	userHandler          *UserHandler
	serviceManager       services.ServiceManager
	auth                 gin.HandlerFunc
}

// NewHandlerManager wires every handler. auth must set user_id and user_role.
func NewHandlerManager(serviceManager services.ServiceManager, logger utils.Logger, auth gin.HandlerFunc) *HandlerManager {
	return &HandlerManager{
		testHandler:     NewTestHandler(serviceManager.Test(), logger),
		questionHandler: NewQuestionHandler(serviceManager.Question(), logger),
		attemptHandler:  NewAttemptHandler(serviceManager.Attempt(), serviceManager.Submission(), logger),
		attemptDetailHandler: NewAttemptDetailHandler(
			serviceManager.Submission(),
			serviceManager.Plan(),
			serviceManager.Certificate(),
			logger,
		),
		exportHandler:  NewExportHandler(serviceManager.Export(), logger),
		userHandler:    NewUserHandler(logger),
		serviceManager: serviceManager,
		auth:           auth,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.healthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(hm.auth)
	{
		v1.GET("/me", hm.userHandler.GetCurrentUser)

		tests := v1.Group("/tests")
		{
			tests.POST("", hm.testHandler.CreateTest)
			tests.GET("", hm.testHandler.ListTests)
			tests.GET("/:id", hm.testHandler.GetTest)
			tests.PUT("/:id", hm.testHandler.UpdateTest)
			tests.DELETE("/:id", hm.testHandler.DeleteTest)

			tests.POST("/:id/topics", hm.testHandler.SelectTopic)
			tests.DELETE("/:id/topics", hm.testHandler.DeselectTopic)
			tests.POST("/:id/reopen", hm.testHandler.ReopenTest)
			tests.POST("/:id/publish", hm.testHandler.PublishTest)

			tests.POST("/:id/generate", hm.questionHandler.GenerateQuestions)
			tests.GET("/:id/questions", hm.questionHandler.ListQuestions)
			tests.POST("/:id/questions", hm.questionHandler.AddQuestion)
		}

		questions := v1.Group("/questions")
		{
			questions.PUT("/:id", hm.questionHandler.UpdateQuestion)
			questions.DELETE("/:id", hm.questionHandler.DeleteQuestion)
			questions.PUT("/:id/correct-option", hm.questionHandler.SetCorrectOption)
		}

		attempts := v1.Group("/attempts")
		{
			attempts.POST("/start", hm.attemptHandler.StartAttempt)
			attempts.GET("/current/:test_id", hm.attemptHandler.GetCurrentAttempt)
			attempts.GET("/remaining/:test_id", hm.attemptHandler.GetRemainingAttempts)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.PUT("/:id/answers", hm.attemptHandler.SaveProgress)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
		}

		details := v1.Group("/attempt-details")
		{
			details.GET("/history/:test_id", hm.attemptDetailHandler.ListHistory)
			details.GET("/:id", hm.attemptDetailHandler.GetDetail)
			details.PATCH("/:id/plan", hm.attemptDetailHandler.EditPlan)
			details.GET("/:id/certificate", hm.attemptDetailHandler.GetCertificate)
		}

		exports := v1.Group("/exports")
		{
			exports.GET("/history/:test_id", hm.exportHandler.DownloadHistory)
			exports.POST("/history/:test_id/publish", hm.exportHandler.PublishHistory)
		}
	}
}

func (hm *HandlerManager) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	if err := hm.serviceManager.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unhealthy",
			"error":     err.Error(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "assessment-service",
	})
}
