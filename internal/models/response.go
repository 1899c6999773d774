package models

type WaitlistResponse struct {
	OK bool `json:"ok"`
	// Token is the signed waitlist pass, only issued when passes are enabled.
	Token string `json:"token,omitempty"`
}

type GenerateResponse struct {
	ImageURL string `json:"imageUrl"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
