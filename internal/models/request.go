package models

type WaitlistRequest struct {
	// Email is kept as raw JSON so a non-string value is reported as an invalid email.
	Email any `json:"email"`
}

type GenerateRequest struct {
	Prompt      string
	Image       []byte
	ContentType string
}

type ErrorResponse struct {
	Error string `json:"error"`
}
