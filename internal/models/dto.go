package models

import "time"

// ===== NOTICES =====

type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
)

// Notice is the user-facing message an operation returns alongside its data.
// Callers decide how to present it.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

func SuccessNotice(message string) *Notice {
	return &Notice{Level: NoticeSuccess, Message: message}
}

func InfoNotice(message string) *Notice {
	return &Notice{Level: NoticeInfo, Message: message}
}

func WarningNotice(message string) *Notice {
	return &Notice{Level: NoticeWarning, Message: message}
}

// ===== PAGINATION =====

type PaginatedResponse struct {
	Content       interface{} `json:"content"`
	TotalElements int64       `json:"total_elements"`
	TotalPages    int         `json:"total_pages"`
	Size          int         `json:"size"`
	Page          int         `json:"page"`
	First         bool        `json:"first"`
	Last          bool        `json:"last"`
	Empty         bool        `json:"empty"`
}

// ===== VALIDATION RESPONSES =====

type ValidationErrorResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
	Code    string `json:"code"`
}

// ===== ERROR RESPONSES =====

type ErrorResponse struct {
	Error            string                    `json:"error"`
	Message          string                    `json:"message"`
	Code             string                    `json:"code"`
	Details          interface{}               `json:"details,omitempty"`
	Timestamp        time.Time                 `json:"timestamp"`
	Path             string                    `json:"path"`
	ValidationErrors []ValidationErrorResponse `json:"validation_errors,omitempty"`
}

type SuccessResponse struct {
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Notice    *Notice     `json:"notice,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
