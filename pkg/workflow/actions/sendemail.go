package actions

import (
	"context"
	"fmt"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/refresolve"
)

const resendSendEmailAPI = "https://api.resend.com/emails"

// SendEmail dispatches a plain-text email through the Resend gateway.
// Each recipient is resolved individually; recipients that resolve to a
// non-string are dropped.
type SendEmail struct {
	Recipients []string `json:"recipients" validate:"required,min=1"`
	Subject    string   `json:"subject" validate:"required"`
	Body       string   `json:"body" validate:"required"`
	SenderName string   `json:"sender_name" validate:"required"`
}

func (s SendEmail) Execute(ctx context.Context, ec *ExecContext) (interface{}, error) {
	recipients := make([]string, 0, len(s.Recipients))
	for _, recipient := range s.Recipients {
		resolved := refresolve.Resolve(recipient, ec.State)
		if address, ok := resolved.(string); ok {
			recipients = append(recipients, address)
		}
	}

	subject := resolveToString(s.Subject, ec.State)
	body := resolveToString(s.Body, ec.State)
	senderName := resolveToString(s.SenderName, ec.State)

	envelope := map[string]interface{}{
		"from":    fmt.Sprintf("%s <%s>", senderName, ec.Mail.SenderEmail),
		"to":      recipients,
		"subject": subject,
		"text":    body,
	}

	headers := map[string]string{"Authorization": "Bearer " + ec.Mail.APIKey}
	if _, err := ec.HTTP.Post(ctx, resendSendEmailAPI, headers, envelope, 200, "Failed to send email!"); err != nil {
		return nil, err
	}

	return envelope, nil
}
