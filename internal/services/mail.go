package services

import (
	"context"
	"fmt"

	"github.com/keithriordan/foyer/internal/shared"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	defaultSendGridHost = "https://api.sendgrid.com"
	sendGridMailPath    = "/v3/mail/send"
)

// SendGridMailer implements [Mailer] with the SendGrid v3 mail send API.
type SendGridMailer struct {
	apiKey string
	host   string
}

// NewSendGridMailer creates a mailer. An empty host targets api.sendgrid.com.
func NewSendGridMailer(apiKey, host string) *SendGridMailer {
	if host == "" {
		host = defaultSendGridHost
	}
	return &SendGridMailer{apiKey: apiKey, host: host}
}

// Send delivers msg as a single HTML email.
func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	if m.apiKey == "" {
		return fmt.Errorf("%w: sendgrid api key", shared.ErrMissingCredentials)
	}

	email := mail.NewSingleEmail(mail.NewEmail("", msg.From), msg.Subject, mail.NewEmail("", msg.To), "", msg.HTML)

	request := sendgrid.GetRequest(m.apiKey, sendGridMailPath, m.host)
	request.Method = rest.Post
	request.Body = mail.GetRequestBody(email)

	resp, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrMailDelivery, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: sendgrid status %d: %s", shared.ErrMailDelivery, resp.StatusCode, resp.Body)
	}
	return nil
}
