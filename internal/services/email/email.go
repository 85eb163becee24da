package email

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

const charset = "UTF-8"

// SendEmailAPI is the part of the SES client the service needs
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// EmailService sends plain-text emails through SES
type EmailService struct {
	client    SendEmailAPI
	fromEmail string
}

// NewEmailService creates a new email service
func NewEmailService(client SendEmailAPI, fromEmail string) *EmailService {
	return &EmailService{
		client:    client,
		fromEmail: fromEmail,
	}
}

// SendEmail sends a plain-text email to every recipient
func (s *EmailService) SendEmail(ctx context.Context, subject, body string, recipients []string) error {
	if s.fromEmail == "" {
		log.Println("Email service not configured properly. Check AWS_SES_EMAIL_SENDER.")
		return fmt.Errorf("email service not configured")
	}
	if len(recipients) == 0 {
		return fmt.Errorf("email has no recipients")
	}

	_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(s.fromEmail),
		Destination: &types.Destination{
			ToAddresses:  recipients,
			CcAddresses:  []string{},
			BccAddresses: []string{},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String(charset)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body), Charset: aws.String(charset)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}
	return nil
}
