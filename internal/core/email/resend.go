package email

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const resendBaseURL = "https://api.resend.com"

// ResendProvider implements email sending via Resend API
type ResendProvider struct {
	apiKey     string
	fromEmail  string
	fromName   string
	baseURL    string
	httpClient *http.Client
}

// NewResendProvider creates a new Resend email provider
func NewResendProvider(apiKey, fromEmail, fromName string) *ResendProvider {
	return &ResendProvider{
		apiKey:     apiKey,
		fromEmail:  fromEmail,
		fromName:   fromName,
		baseURL:    resendBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// WithBaseURL points the provider at another API host
func (p *ResendProvider) WithBaseURL(baseURL string) *ResendProvider {
	p.baseURL = baseURL
	return p
}

type resendEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
}

// SendEmail sends an email via Resend API
func (p *ResendProvider) SendEmail(ctx context.Context, to, subject, body string) error {
	fromAddress := p.fromEmail
	if p.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", p.fromName, p.fromEmail)
	}

	return postJSON(ctx, p.httpClient, p.baseURL+"/emails",
		map[string]string{"Authorization": "Bearer " + p.apiKey},
		resendEmailRequest{
			From:    fromAddress,
			To:      []string{to},
			Subject: subject,
			HTML:    body,
		}, "resend")
}

// GetProviderName returns the provider name
func (p *ResendProvider) GetProviderName() string {
	return "resend"
}
