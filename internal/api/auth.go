package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/solenko/tutord/internal/auth"
	"github.com/solenko/tutord/internal/storage"
)

type contextKey string

const userContextKey contextKey = "user"

// BearerAuth resolves the Authorization header through the auth service and
// stashes the user on the request context.
func BearerAuth(svc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				httpError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			user, err := svc.Authenticate(header[len(prefix):])
			if err != nil {
				writeDomainError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestUser returns the authenticated user placed by BearerAuth.
func requestUser(r *http.Request) storage.User {
	u, _ := r.Context().Value(userContextKey).(storage.User)
	return u
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type tokenResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

func handleSignup(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		user, token, err := svc.Signup(req.Username, req.Password, req.Email)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSONStatus(w, http.StatusCreated, tokenResponse{Token: token, Username: user.Username})
	}
}

func handleLogin(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		user, token, err := svc.Login(req.Username, req.Password)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, tokenResponse{Token: token, Username: user.Username})
	}
}
