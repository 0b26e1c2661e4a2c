package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// Provider defines the interface for email providers
type Provider interface {
	SendEmail(ctx context.Context, to, subject, body string) error
	GetProviderName() string
}

// Service wraps the email provider
type Service struct {
	provider Provider
}

// NewService creates a new email service with the specified provider
func NewService(provider Provider) *Service {
	return &Service{
		provider: provider,
	}
}

// NewProvider picks a provider by name. An empty API key falls back to the log provider.
func NewProvider(name, apiKey, fromEmail, fromName string) (Provider, error) {
	if apiKey == "" {
		return LogProvider{}, nil
	}
	switch strings.ToLower(name) {
	case "", "resend":
		return NewResendProvider(apiKey, fromEmail, fromName), nil
	case "brevo":
		return NewBrevoProvider(apiKey, fromEmail, fromName), nil
	case "log":
		return LogProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown email provider: %s", name)
	}
}

// SendEmail sends an HTML email
func (s *Service) SendEmail(ctx context.Context, to, subject, body string) error {
	if s.provider == nil {
		return errors.New("no email provider configured")
	}
	if strings.TrimSpace(to) == "" {
		return errors.New("recipient is required")
	}
	return s.provider.SendEmail(ctx, to, subject, body)
}

// GetProviderName returns the name of the current provider
func (s *Service) GetProviderName() string {
	if s.provider == nil {
		return "none"
	}
	return s.provider.GetProviderName()
}

// LogProvider writes emails to the log instead of sending them
type LogProvider struct{}

func (LogProvider) SendEmail(ctx context.Context, to, subject, body string) error {
	log.Info().Str("to", to).Str("subject", subject).Int("body_bytes", len(body)).Msg("email (log provider)")
	return nil
}

func (LogProvider) GetProviderName() string {
	return "log"
}

// postJSON posts a JSON body and treats any non-2xx status as an error
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload interface{}, provider string) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s API error (status %d): %s", provider, resp.StatusCode, string(body))
	}

	return nil
}
