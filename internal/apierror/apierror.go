// Package apierror defines the JSON error envelope returned by every handler.
// Internal details (SQL errors, stack traces) never go through here.
package apierror

// APIError is the body of all 4xx/5xx responses.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// ValidationError carries per-field failures from request binding.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Error de validacion", Fields: fields}
}

// NewFieldError reports a single rejected field with a custom message.
func NewFieldError(detail, field, rule string) *ValidationError {
	return &ValidationError{Detail: detail, Fields: map[string]string{field: rule}}
}
