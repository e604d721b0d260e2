package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tripweave/globals"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
)

func mintToken(t *testing.T, userID, username string, ttl time.Duration) string {
	t.Helper()
	claims := &Claims{
		Username: username,
		UserID:   userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(globals.JwtSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestParseTokenRoundTrip(t *testing.T) {
	token := mintToken(t, "u123", "alice", time.Hour)

	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "u123" || claims.Username != "alice" {
		t.Fatalf("claims wrong: %+v", claims)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token := mintToken(t, "u123", "alice", -time.Minute)
	if _, err := ParseToken(token); err == nil {
		t.Fatal("expected expired token rejection")
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	claims := &Claims{UserID: "u123", Username: "alice"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseToken(token); err == nil {
		t.Fatal("expected wrong-secret rejection")
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	if _, err := ParseToken(""); err == nil {
		t.Fatal("expected empty token rejection")
	}
	if _, err := ParseToken("not.a.jwt"); err == nil {
		t.Fatal("expected malformed token rejection")
	}
}

func TestValidateJWT(t *testing.T) {
	token := mintToken(t, "u123", "alice", time.Hour)

	if _, err := ValidateJWT("Bearer " + token); err != nil {
		t.Fatalf("valid header rejected: %v", err)
	}
	if _, err := ValidateJWT(token); err == nil {
		t.Fatal("expected rejection without Bearer prefix")
	}
}

func TestAuthenticateSetsContext(t *testing.T) {
	token := mintToken(t, "u123", "alice", time.Hour)

	var gotID string
	handler := Authenticate(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gotID = UserIDFromContext(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/api/trips", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler(w, r, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotID != "u123" {
		t.Fatalf("expected user id in context, got %q", gotID)
	}
}

func TestAuthenticateRejectsBadHeaders(t *testing.T) {
	handler := Authenticate(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		t.Fatal("handler must not run without valid auth")
	})

	cases := map[string]string{
		"missing":      "",
		"no prefix":    "token-without-bearer",
		"bad token":    "Bearer not.a.jwt",
		"empty bearer": "Bearer ",
	}
	for name, header := range cases {
		r := httptest.NewRequest(http.MethodGet, "/api/trips", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		handler(w, r, nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, w.Code)
		}
	}
}

func TestAuthenticatePassesWebsocketUpgrade(t *testing.T) {
	called := false
	handler := Authenticate(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		called = true
	})

	// Handshake auth happens in the realtime handler, not here.
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Connection", "Upgrade")
	r.Header.Set("Upgrade", "websocket")
	w := httptest.NewRecorder()
	handler(w, r, nil)

	if !called {
		t.Fatal("websocket upgrade must pass through to the realtime handler")
	}
}
