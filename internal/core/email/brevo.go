package email

import (
	"context"
	"net/http"
	"time"
)

const brevoBaseURL = "https://api.brevo.com"

// BrevoProvider implements email sending via Brevo (formerly Sendinblue)
type BrevoProvider struct {
	apiKey     string
	fromEmail  string
	fromName   string
	baseURL    string
	httpClient *http.Client
}

// NewBrevoProvider creates a new Brevo email provider
func NewBrevoProvider(apiKey, fromEmail, fromName string) *BrevoProvider {
	return &BrevoProvider{
		apiKey:     apiKey,
		fromEmail:  fromEmail,
		fromName:   fromName,
		baseURL:    brevoBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// WithBaseURL points the provider at another API host
func (p *BrevoProvider) WithBaseURL(baseURL string) *BrevoProvider {
	p.baseURL = baseURL
	return p
}

type brevoEmailRequest struct {
	Sender      brevoContact   `json:"sender"`
	To          []brevoContact `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent,omitempty"`
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// SendEmail sends an email via Brevo API
func (p *BrevoProvider) SendEmail(ctx context.Context, to, subject, body string) error {
	return postJSON(ctx, p.httpClient, p.baseURL+"/v3/smtp/email",
		map[string]string{"api-key": p.apiKey},
		brevoEmailRequest{
			Sender:      brevoContact{Email: p.fromEmail, Name: p.fromName},
			To:          []brevoContact{{Email: to}},
			Subject:     subject,
			HTMLContent: body,
		}, "brevo")
}

// GetProviderName returns the provider name
func (p *BrevoProvider) GetProviderName() string {
	return "brevo"
}
