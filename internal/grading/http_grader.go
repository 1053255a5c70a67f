package grading

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/studyhub/assessment-service/internal/utils"
)

// maxErrorBody bounds how much of an error response is kept for logs
const maxErrorBody = 2048

// HTTPGrader calls the remote grading service
type HTTPGrader struct {
	baseURL string
	client  *http.Client
	logger  utils.Logger
}

func NewHTTPGrader(baseURL string, timeout time.Duration, logger utils.Logger) *HTTPGrader {
	return &HTTPGrader{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Grade posts the request to {baseURL}/grade
func (g *HTTPGrader) Grade(ctx context.Context, req *Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode grading request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/grade", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build grading request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("grading service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		g.logger.Error("Grading service returned an error",
			"status", resp.StatusCode,
			"body", string(detail),
			"test_id", req.TestInfo.ID)
		return nil, fmt.Errorf("grading service returned status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode grading response: %w", err)
	}

	g.logger.Info("Graded submission",
		"test_id", req.TestInfo.ID,
		"total_score", result.TotalScore,
		"total_questions", result.TotalQuestions,
		"latency_ms", time.Since(start).Milliseconds())
	return &result, nil
}
