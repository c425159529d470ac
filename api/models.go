package api

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// CredentialsRequest is the body of POST /signup and POST /login.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// MessageResponse carries a human-readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// LoginResponse is returned by POST /login. AccessToken is nil when the
// server is configured not to issue tokens.
type LoginResponse struct {
	Message     string  `json:"message,omitempty"`
	AccessToken *string `json:"access_token"`
	TokenType   string  `json:"token_type,omitempty"`
}

// ProtectedResponse is returned by GET /protected.
type ProtectedResponse struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

// DatabaseInfoResponse is returned by GET /database-info.
type DatabaseInfoResponse struct {
	TotalUsers int    `json:"total_users"`
	Database   string `json:"database"`
}
