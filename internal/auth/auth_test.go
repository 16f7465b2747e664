package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPValidator_ValidToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req validateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		if req.Token == "valid-token" {
			_ = json.NewEncoder(w).Encode(validateResponse{
				Valid:  true,
				UserID: "u-123",
				Name:   "alice",
				Role:   "moderator",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(validateResponse{Valid: false})
	}))
	defer server.Close()

	validator := NewHTTPValidator(server.URL, "")

	identity, err := validator.Validate(context.Background(), "valid-token")
	require.NoError(t, err)
	assert.Equal(t, &Identity{UserID: "u-123", Name: "alice", Role: "moderator"}, identity)

	_, err = validator.Validate(context.Background(), "other-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHTTPValidator_EmptyToken(t *testing.T) {
	validator := NewHTTPValidator("http://127.0.0.1:1", "")
	_, err := validator.Validate(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHTTPValidator_ValidWithoutUserIsInvalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(validateResponse{Valid: true})
	}))
	defer server.Close()

	_, err := NewHTTPValidator(server.URL, "").Validate(context.Background(), "token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHTTPValidator_StatusCodes(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrInvalidToken},
		{http.StatusForbidden, ErrInvalidToken},
		{http.StatusTooManyRequests, ErrUnavailable},
		{http.StatusInternalServerError, ErrUnavailable},
		{http.StatusServiceUnavailable, ErrUnavailable},
		{http.StatusTeapot, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := NewHTTPValidator(server.URL, "").Validate(context.Background(), "token")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHTTPValidator_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	validator := NewHTTPValidator(server.URL, "")
	validator.timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := validator.Validate(context.Background(), "token")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestHTTPValidator_SendsSecret(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Auth-Secret")
		_ = json.NewEncoder(w).Encode(validateResponse{Valid: true, UserID: "u"})
	}))
	defer server.Close()

	_, err := NewHTTPValidator(server.URL, "s3cret").Validate(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)
}

func TestHTTPValidator_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer server.Close()

	_, err := NewHTTPValidator(server.URL, "").Validate(context.Background(), "token")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNoopValidator(t *testing.T) {
	identity, err := NewNoopValidator().Validate(context.Background(), "")
	assert.NoError(t, err)
	assert.Nil(t, identity)
}
