// Package email composes and sends customer notifications over SMTP.
package email

import (
	"context"
	"errors"
)

// Email represents an email message to be sent.
type Email struct {
	To       []string          // Recipient email addresses
	From     string            // Sender address; the sender's default when empty
	Subject  string            // Email subject
	TextBody string            // Plain text body
	HTMLBody string            // HTML body (optional)
	Headers  map[string]string // Custom headers (optional)
}

// Sender delivers a composed message and returns a message id.
type Sender interface {
	Send(ctx context.Context, email *Email) (string, error)
}

// ErrNoRecipients is returned when a message has no To address.
var ErrNoRecipients = errors.New("email has no recipients")
