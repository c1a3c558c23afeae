package external

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drireneleemd/mri-safety/internal/domain"
)

// writeTestKey generates an RSA key pair and writes the private half to a
// temp PEM file, returning the path and the key for verification
func writeTestKey(t *testing.T) (string, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "private_key.pem")
	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))

	return path, key
}

func TestEpicAuthClient_FetchToken(t *testing.T) {
	keyPath, key := writeTestKey(t)

	var capturedForm map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		capturedForm = map[string]string{
			"grant_type":            r.PostFormValue("grant_type"),
			"client_assertion_type": r.PostFormValue("client_assertion_type"),
			"client_assertion":      r.PostFormValue("client_assertion"),
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"test-bearer-token","token_type":"bearer","expires_in":3600}`)
	}))
	defer server.Close()

	client := NewEpicAuthClient(domain.EpicConfig{
		ClientID:       "client-123",
		KeyID:          "my-key-1",
		PrivateKeyPath: keyPath,
		TokenURL:       server.URL,
		Timeout:        5 * time.Second,
	})

	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return issued }

	token, err := client.FetchToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test-bearer-token", token)

	assert.Equal(t, "client_credentials", capturedForm["grant_type"])
	assert.Equal(t, "urn:ietf:params:oauth:client-assertion-type:jwt-bearer", capturedForm["client_assertion_type"])

	// The assertion must verify against the registered key and carry the
	// backend-services claim set.
	parsed, err := jwt.Parse(capturedForm["client_assertion"], func(tok *jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS384"}), jwt.WithTimeFunc(func() time.Time { return issued }))
	require.NoError(t, err)

	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, "client-123", claims["iss"])
	assert.Equal(t, "client-123", claims["sub"])
	assert.Equal(t, server.URL, claims["aud"])
	assert.NotEmpty(t, claims["jti"])
	assert.Equal(t, "my-key-1", parsed.Header["kid"])

	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	assert.Equal(t, issued.Add(4*time.Minute).Unix(), exp.Unix())
}

func TestEpicAuthClient_FetchToken_UniqueJTI(t *testing.T) {
	keyPath, key := writeTestKey(t)

	var assertions []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assertions = append(assertions, r.PostFormValue("client_assertion"))
		fmt.Fprint(w, `{"access_token":"tok"}`)
	}))
	defer server.Close()

	client := NewEpicAuthClient(domain.EpicConfig{
		ClientID:       "client-123",
		KeyID:          "my-key-1",
		PrivateKeyPath: keyPath,
		TokenURL:       server.URL,
		Timeout:        5 * time.Second,
	})

	_, err := client.FetchToken(context.Background())
	require.NoError(t, err)
	_, err = client.FetchToken(context.Background())
	require.NoError(t, err)
	require.Len(t, assertions, 2)

	jti := func(assertion string) string {
		parsed, err := jwt.Parse(assertion, func(tok *jwt.Token) (interface{}, error) {
			return &key.PublicKey, nil
		}, jwt.WithValidMethods([]string{"RS384"}))
		require.NoError(t, err)
		return parsed.Claims.(jwt.MapClaims)["jti"].(string)
	}
	assert.NotEqual(t, jti(assertions[0]), jti(assertions[1]))
}

func TestEpicAuthClient_FetchToken_Errors(t *testing.T) {
	keyPath, _ := writeTestKey(t)

	tests := []struct {
		name        string
		status      int
		body        string
		keyPath     string
		errContains string
	}{
		{
			name:        "server rejects assertion",
			status:      http.StatusBadRequest,
			body:        `{"error":"invalid_client"}`,
			keyPath:     keyPath,
			errContains: "invalid_client",
		},
		{
			name:        "missing access token",
			status:      http.StatusOK,
			body:        `{"token_type":"bearer"}`,
			keyPath:     keyPath,
			errContains: "no access_token",
		},
		{
			name:        "missing key file",
			status:      http.StatusOK,
			body:        `{"access_token":"tok"}`,
			keyPath:     filepath.Join(t.TempDir(), "missing.pem"),
			errContains: "not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := NewEpicAuthClient(domain.EpicConfig{
				ClientID:       "client-123",
				KeyID:          "my-key-1",
				PrivateKeyPath: tt.keyPath,
				TokenURL:       server.URL,
				Timeout:        5 * time.Second,
			})

			_, err := client.FetchToken(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}
