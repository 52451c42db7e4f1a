package dto

// ProcessImageResponse is returned by POST /process-image on success.
type ProcessImageResponse struct {
	Message       string `json:"message"`
	ExtractedText string `json:"extractedText"`
}

// ErrorResponse is the body of every failed request. ExtractedText is set when
// extraction succeeded but a later step failed; Outcome carries the capture
// cycle result for POST /capture.
type ErrorResponse struct {
	Error         string `json:"error"`
	ExtractedText string `json:"extractedText,omitempty"`
	Outcome       any    `json:"outcome,omitempty"`
}

// HealthStatus reports which optional backends are wired.
type HealthStatus struct {
	Status       string `json:"status"`
	Provider     string `json:"provider"`
	Records      bool   `json:"records"`
	Sessions     string `json:"sessions"`
	ContactStore string `json:"contactStore"`
}
