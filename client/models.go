package client

import "encoding/json"

// AuthRequest is the JSON body for POST /signup and POST /login.
type AuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterResponse is returned from POST /signup. The backend decides its
// contents; Message is the only field read here.
type RegisterResponse struct {
	Message string `json:"message,omitempty"`
}

// LoginResponse is returned from POST /login. A null or missing
// access_token means the user is not authenticated even on HTTP success.
type LoginResponse struct {
	AccessToken *string `json:"access_token"`
	TokenType   string  `json:"token_type,omitempty"`
}

// Token returns the issued token, or "" if none was issued.
func (r *LoginResponse) Token() string {
	if r == nil || r.AccessToken == nil {
		return ""
	}
	return *r.AccessToken
}

// DatabaseInfo is returned from GET /database-info. Fields beyond the known
// ones are kept in Extra.
type DatabaseInfo struct {
	TotalUsers int            `json:"total_users"`
	Database   string         `json:"database"`
	Extra      map[string]any `json:"-"`
}

func (d *DatabaseInfo) UnmarshalJSON(data []byte) error {
	type known DatabaseInfo
	var k known
	if err := json.Unmarshal(data, &k); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	delete(all, "total_users")
	delete(all, "database")
	*d = DatabaseInfo(k)
	if len(all) > 0 {
		d.Extra = all
	}
	return nil
}

// errorPayload is the backend error convention: {"detail": "..."}.
type errorPayload struct {
	Detail json.RawMessage `json:"detail"`
}

// detailFrom extracts a string detail from an error body. Non-string
// details (for example a list of field errors) are ignored.
func detailFrom(body []byte) string {
	var p errorPayload
	if err := json.Unmarshal(body, &p); err != nil || len(p.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(p.Detail, &s); err != nil {
		return ""
	}
	return s
}
