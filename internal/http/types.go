package http

// ChatRequest is the request body for POST /api/v1/chat.
type ChatRequest struct {
	Message  string `json:"message"`
	TenantID string `json:"tenantId"`
}

// ChatResponse is the response body for POST /api/v1/chat.
type ChatResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// ClearRequest is the request body for POST /api/v1/chat/clear.
type ClearRequest struct {
	TenantID string `json:"tenantId"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
