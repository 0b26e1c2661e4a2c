package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTwilioProvider_SendSMS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "token", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+15550001", r.PostForm.Get("To"))
		assert.Equal(t, "+15559999", r.PostForm.Get("From"))
		assert.Equal(t, "hello", r.PostForm.Get("Body"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	provider := NewTwilioProvider("AC123", "token", "+15559999").WithBaseURL(server.URL)
	require.NoError(t, NewService(provider).SendSMS(context.Background(), "+15550001", "hello"))
}

func TestTwilioProvider_ErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number"}`))
	}))
	defer server.Close()

	provider := NewTwilioProvider("AC123", "token", "+15559999").WithBaseURL(server.URL)
	err := provider.SendSMS(context.Background(), "nope", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "21211")
	assert.Contains(t, err.Error(), "Invalid 'To' Phone Number")
}

func TestNewProvider_FallsBackToLog(t *testing.T) {
	assert.Equal(t, "log", NewProvider("", "", "").GetProviderName())
	assert.Equal(t, "twilio", NewProvider("AC1", "tok", "+1").GetProviderName())
	assert.Error(t, NewService(LogProvider{}).SendSMS(context.Background(), "", "x"))
}
