package mail

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sghelpers "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type Sender interface {
	SendPasswordReset(ctx context.Context, toEmail, token string) error
}

type SendgridSender struct {
	client *sendgrid.Client
	from   string
}

func NewSendgridSender(apiKey, from string) *SendgridSender {
	return &SendgridSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   from,
	}
}

func (s *SendgridSender) SendPasswordReset(ctx context.Context, toEmail, token string) error {
	from := sghelpers.NewEmail("storefront", s.from)
	to := sghelpers.NewEmail("", toEmail)
	subject := "Password reset"
	body := fmt.Sprintf("Your password reset code: %s\nIt expires in one hour.", token)
	message := sghelpers.NewSingleEmail(from, subject, to, body, body)

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid: status %d", resp.StatusCode)
	}
	return nil
}

// Nop is used when no mail provider is configured and in tests.
type Nop struct{}

func (Nop) SendPasswordReset(context.Context, string, string) error { return nil }
