// Package sms sends text messages through a configured provider.
package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Provider defines the interface for SMS providers
type Provider interface {
	SendSMS(ctx context.Context, to, message string) error
	GetProviderName() string
}

// Service wraps the SMS provider
type Service struct {
	provider Provider
}

// NewService creates a new SMS service
func NewService(provider Provider) *Service {
	return &Service{provider: provider}
}

// NewProvider returns a Twilio provider, or the log provider when credentials are missing
func NewProvider(accountSID, authToken, from string) Provider {
	if accountSID == "" || authToken == "" {
		return LogProvider{}
	}
	return NewTwilioProvider(accountSID, authToken, from)
}

// SendSMS sends one message
func (s *Service) SendSMS(ctx context.Context, to, message string) error {
	if s.provider == nil {
		return errors.New("no sms provider configured")
	}
	if strings.TrimSpace(to) == "" {
		return errors.New("recipient is required")
	}
	return s.provider.SendSMS(ctx, to, message)
}

// GetProviderName returns the name of the current provider
func (s *Service) GetProviderName() string {
	if s.provider == nil {
		return "none"
	}
	return s.provider.GetProviderName()
}

// LogProvider writes messages to the log instead of sending them
type LogProvider struct{}

func (LogProvider) SendSMS(ctx context.Context, to, message string) error {
	log.Info().Str("to", to).Int("length", len(message)).Msg("sms (log provider)")
	return nil
}

func (LogProvider) GetProviderName() string {
	return "log"
}

const twilioBaseURL = "https://api.twilio.com"

// TwilioProvider sends messages through the Twilio Messages API
type TwilioProvider struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
}

// NewTwilioProvider creates a new Twilio provider
func NewTwilioProvider(accountSID, authToken, from string) *TwilioProvider {
	return &TwilioProvider{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    twilioBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// WithBaseURL points the provider at another API host
func (p *TwilioProvider) WithBaseURL(baseURL string) *TwilioProvider {
	p.baseURL = baseURL
	return p
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SendSMS sends a message via the Twilio API
func (p *TwilioProvider) SendSMS(ctx context.Context, to, message string) error {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", p.from)
	form.Set("Body", message)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", p.baseURL, p.accountSID)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.accountSID, p.authToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr twilioError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("twilio API error (status %d, code %d): %s", resp.StatusCode, apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("twilio API error (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}

// GetProviderName returns the provider name
func (p *TwilioProvider) GetProviderName() string {
	return "twilio"
}
