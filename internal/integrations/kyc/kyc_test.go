// internal/integrations/kyc/kyc_test.go
package kyc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"p2p-lending/internal/util"
)

func TestClientVerifyIdentity(t *testing.T) {
	var got verificationRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, verificationsPath, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"verified":false,"reason":"document expired"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL + "/", APIKey: "secret"}, nil)
	result, err := client.VerifyIdentity(context.Background(), 2, "AB123456")
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.Equal(t, "document expired", result.Reason)
	assert.Equal(t, int64(2), got.UserID)
	assert.Equal(t, "AB123456", got.DocumentID)
}

func TestClientVerifyIdentityUpstreamFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"verified":`))
			},
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(200 * time.Millisecond)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewClient(Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond}, nil)
			result, err := client.VerifyIdentity(context.Background(), 2, "AB123456")
			assert.ErrorIs(t, err, util.ErrUpstreamFailure)
			assert.False(t, result.Verified)
		})
	}
}

func TestClientVerifyIdentityUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(Config{BaseURL: url}, nil)
	_, err := client.VerifyIdentity(context.Background(), 2, "AB123456")
	assert.ErrorIs(t, err, util.ErrUpstreamFailure)
}

func TestDevVerifier(t *testing.T) {
	tests := []struct {
		document string
		want     bool
	}{
		{"AB1234", true},
		{"  AB1234  ", true},
		{"AB123", false},
		{"      ", false},
		{"", false},
	}

	for _, tt := range tests {
		result, err := DevVerifier{}.VerifyIdentity(context.Background(), 2, tt.document)
		require.NoError(t, err)
		assert.Equal(t, tt.want, result.Verified, "document %q", tt.document)
		if !tt.want {
			assert.NotEmpty(t, result.Reason)
		}
	}
}
