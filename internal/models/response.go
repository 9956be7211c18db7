package models

// Validation error types reported in 422 responses.
const (
	ValidationTypeMissing = "missing"
)

// ValidationError describes a single rejected webhook field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ErrorResponse is the JSON envelope returned for synchronous webhook
// rejections.
type ErrorResponse struct {
	ErrorCode        int               `json:"error_code"`
	Description      string            `json:"description"`
	Message          string            `json:"message"`
	ValidationErrors []ValidationError `json:"validation_errors,omitempty"`
}
