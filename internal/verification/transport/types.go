// Package transport provides HTTP request/response types for the verification domain.
package transport

// SweepResponse reports the outcome of one backlog sweep.
type SweepResponse struct {
	Success           bool `json:"success"`
	VerificationCount int  `json:"verificationCount"`
	Completed         int  `json:"completed"`
	Errors            int  `json:"errors"`
	Overflow          bool `json:"overflow,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
