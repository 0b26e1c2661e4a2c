package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResendProvider_SendEmail(t *testing.T) {
	var got resendEmailRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider := NewResendProvider("re_key", "crm@acme.com", "Acme CRM").WithBaseURL(server.URL)
	require.NoError(t, NewService(provider).SendEmail(context.Background(), "jo@acme.com", "Welcome", "<p>Hi</p>"))

	assert.Equal(t, "Acme CRM <crm@acme.com>", got.From)
	assert.Equal(t, []string{"jo@acme.com"}, got.To)
	assert.Equal(t, "Welcome", got.Subject)
}

func TestBrevoProvider_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "brevo_key", r.Header.Get("api-key"))
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"key not found"}`))
	}))
	defer server.Close()

	provider := NewBrevoProvider("brevo_key", "crm@acme.com", "").WithBaseURL(server.URL)
	err := provider.SendEmail(context.Background(), "jo@acme.com", "Welcome", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "key not found")
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider("resend", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "log", p.GetProviderName())

	p, err = NewProvider("brevo", "key", "a@b.c", "")
	require.NoError(t, err)
	assert.Equal(t, "brevo", p.GetProviderName())

	_, err = NewProvider("pigeon", "key", "a@b.c", "")
	assert.Error(t, err)
}

func TestService_RequiresRecipient(t *testing.T) {
	assert.Error(t, NewService(LogProvider{}).SendEmail(context.Background(), " ", "s", "b"))
	assert.Error(t, NewService(nil).SendEmail(context.Background(), "jo@acme.com", "s", "b"))
	assert.Equal(t, "none", NewService(nil).GetProviderName())
}
