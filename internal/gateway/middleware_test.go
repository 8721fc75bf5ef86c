package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/joao-fontenele/cartflow/internal/auth"
)

func TestAuthenticator(t *testing.T) {
	validator := auth.NewTokenValidator("test-secret")
	authenticator := NewAuthenticator(validator, discardLogger())

	userToken, err := validator.Issue(auth.Identity{UserID: "user-1"}, time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	adminToken, err := validator.Issue(auth.Identity{UserID: "ops", Role: auth.RoleAdmin}, time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	var seenUser string
	next := func(w http.ResponseWriter, r *http.Request) {
		identity, _ := identityFromContext(r.Context())
		seenUser = identity.UserID
		w.WriteHeader(http.StatusNoContent)
	}

	tests := []struct {
		name           string
		handler        http.HandlerFunc
		authorization  string
		expectedStatus int
		expectedUser   string
	}{
		{name: "missing token", handler: authenticator.Require(next), expectedStatus: http.StatusUnauthorized},
		{name: "garbage token", handler: authenticator.Require(next), authorization: "Bearer nope", expectedStatus: http.StatusUnauthorized},
		{name: "valid token", handler: authenticator.Require(next), authorization: "Bearer " + userToken, expectedStatus: http.StatusNoContent, expectedUser: "user-1"},
		{name: "admin route as user", handler: authenticator.RequireAdmin(next), authorization: "Bearer " + userToken, expectedStatus: http.StatusForbidden},
		{name: "admin route as admin", handler: authenticator.RequireAdmin(next), authorization: "Bearer " + adminToken, expectedStatus: http.StatusNoContent, expectedUser: "ops"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seenUser = ""
			req := httptest.NewRequest(http.MethodGet, "/cart", nil)
			if tt.authorization != "" {
				req.Header.Set("Authorization", tt.authorization)
			}
			rec := httptest.NewRecorder()

			tt.handler(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if seenUser != tt.expectedUser {
				t.Errorf("expected user %q, got %q", tt.expectedUser, seenUser)
			}
		})
	}
}
