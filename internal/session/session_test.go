package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretDestroy(t *testing.T) {
	b := []byte("s3cr3t")
	s := NewSecretBytes(b)

	v, ok := s.Reveal()
	require.True(t, ok)
	assert.Equal(t, "s3cr3t", v)

	s.Destroy()
	s.Destroy()

	assert.True(t, s.Destroyed())
	assert.True(t, s.Empty())
	assert.Equal(t, make([]byte, len(b)), b, "bytes should be zeroed")
	_, ok = s.Reveal()
	assert.False(t, ok)
}

func TestOpenBasicAuth(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := Open(context.Background(), srv.URL+"/", Credentials{Email: "agent@example.com", Token: NewSecret("abc")})
	require.NoError(t, err)
	assert.Equal(t, srv.URL, s.BaseURL())

	resp, err := s.Client().Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("agent@example.com/token:abc"))
	assert.Equal(t, want, got)
}

func TestOpenOAuth(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	s, err := Open(context.Background(), srv.URL, Credentials{OAuthToken: NewSecret("tok")})
	require.NoError(t, err)

	resp, err := s.Client().Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer tok", got)
}

func TestCloseDestroysCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	token := NewSecret("abc")
	s, err := Open(context.Background(), srv.URL, Credentials{Email: "a@example.com", Token: token})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, s.Closed())
	assert.True(t, token.Destroyed())

	_, err = s.Client().Get(srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestOpenInvalidCredentials(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
	}{
		{name: "no token", creds: Credentials{Email: "a@example.com"}},
		{name: "no email", creds: Credentials{Token: NewSecret("abc")}},
		{name: "empty token", creds: Credentials{Email: "a@example.com", Token: NewSecret("")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), "http://localhost", tt.creds)
			assert.Error(t, err)
			assert.True(t, tt.creds.Token.Empty())
		})
	}
}

func TestEnvProvider(t *testing.T) {
	t.Setenv(EnvEmail, "agent@example.com")
	t.Setenv(EnvAPIToken, "abc")
	t.Setenv(EnvOAuthToken, "")

	creds, err := EnvProvider{}.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "agent@example.com", creds.Email)
	v, _ := creds.Token.Reveal()
	assert.Equal(t, "abc", v)
	assert.Nil(t, creds.OAuthToken)
}

func TestEnvProviderMissing(t *testing.T) {
	t.Setenv(EnvEmail, "")
	t.Setenv(EnvAPIToken, "")
	t.Setenv(EnvOAuthToken, "")

	_, err := EnvProvider{}.Credentials(context.Background())
	assert.Error(t, err)
}

func TestPromptProvider(t *testing.T) {
	t.Setenv(EnvEmail, "")
	t.Setenv(EnvAPIToken, "")
	t.Setenv(EnvOAuthToken, "")

	in, err := os.CreateTemp(t.TempDir(), "stdin")
	require.NoError(t, err)
	defer in.Close()
	_, err = in.WriteString("agent@example.com\n")
	require.NoError(t, err)
	_, err = in.Seek(0, 0)
	require.NoError(t, err)

	var out bytes.Buffer
	p := &PromptProvider{
		In:         in,
		Out:        &out,
		readSecret: func(int) ([]byte, error) { return []byte(" abc\n"), nil },
	}

	creds, err := p.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "agent@example.com", creds.Email)
	v, _ := creds.Token.Reveal()
	assert.Equal(t, "abc", v)
	assert.Contains(t, out.String(), "Zendesk email:")
	assert.Contains(t, out.String(), "Zendesk API token:")
}

func TestPromptProviderPrefersEnv(t *testing.T) {
	t.Setenv(EnvEmail, "agent@example.com")
	t.Setenv(EnvAPIToken, "")
	t.Setenv(EnvOAuthToken, "oauth")

	p := &PromptProvider{
		readSecret: func(int) ([]byte, error) {
			t.Fatal("prompt should not be used")
			return nil, nil
		},
	}
	creds, err := p.Credentials(context.Background())
	require.NoError(t, err)
	v, _ := creds.OAuthToken.Reveal()
	assert.Equal(t, "oauth", v)
}
