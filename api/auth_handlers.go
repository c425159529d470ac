package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	msgSignupOK           = "User created successfully"
	msgLoginOK            = "Login successful"
	msgWeakPassword       = "Weak password"
	msgUserExists         = "User already exists"
	msgInvalidCredentials = "Invalid username or password"
)

// Signup handles POST /signup.
func (a *API) Signup(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[CredentialsRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	if !passwordStrong(req.Password) || len(req.Password) > bcryptMaxLen {
		a.audit.logFailure(AuditSignupFailure, r, "weak password", slog.String("username", req.Username))
		writeError(w, http.StatusBadRequest, msgWeakPassword)
		return
	}

	hash, err := hashPassword(req.Password, a.bcryptCost)
	if err != nil {
		writeInternalError(w, "failed to hash password", err)
		return
	}

	a.signupMu.Lock()
	err = a.users.create(userRecord{
		Username:     req.Username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	})
	a.signupMu.Unlock()
	if errors.Is(err, errUserExists) {
		a.audit.logFailure(AuditSignupFailure, r, "duplicate username", slog.String("username", req.Username))
		writeError(w, http.StatusConflict, msgUserExists)
		return
	}
	if err != nil {
		writeInternalError(w, "failed to persist user", err)
		return
	}

	a.audit.logEvent(AuditSignup, r, req.Username)
	writeJSON(w, http.StatusOK, MessageResponse{Message: msgSignupOK})
}

// Login handles POST /login.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[CredentialsRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	key := normalizeUsername(req.Username)

	if blocked, retryAfter := a.rateLimiter.check(key); blocked {
		a.audit.logFailure(AuditLoginRateLimited, r, "rate limited", slog.String("username", req.Username))
		writeRateLimited(w, retryAfter)
		return
	}

	rec, err := a.users.get(req.Username)
	if err != nil || !checkPassword(rec.PasswordHash, req.Password) {
		a.rateLimiter.recordFailure(key)
		a.audit.logFailure(AuditLoginFailure, r, "invalid credentials", slog.String("username", req.Username))
		writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}
	a.rateLimiter.recordSuccess(key)

	resp := LoginResponse{Message: msgLoginOK}
	if a.issueTokens {
		tok, err := a.tokens.issue(rec.Username)
		if err != nil {
			writeInternalError(w, "failed to issue token", err)
			return
		}
		resp.AccessToken = &tok
		resp.TokenType = "bearer"
	}

	a.audit.logEvent(AuditLoginSuccess, r, rec.Username)
	writeJSON(w, http.StatusOK, resp)
}

// Protected handles GET /protected. AuthMiddleware has already checked the token.
func (a *API) Protected(w http.ResponseWriter, r *http.Request) {
	username := usernameFromContext(r.Context())
	writeJSON(w, http.StatusOK, ProtectedResponse{
		Message:  "Hello " + username + ", your token is valid",
		Username: username,
	})
}

// DatabaseInfo handles GET /database-info.
func (a *API) DatabaseInfo(w http.ResponseWriter, r *http.Request) {
	n, err := a.users.count()
	if err != nil {
		writeInternalError(w, "failed to count users", err)
		return
	}
	writeJSON(w, http.StatusOK, DatabaseInfoResponse{TotalUsers: n, Database: a.databaseName})
}
