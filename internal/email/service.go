package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
)

// Service handles email composition and sending
type Service struct {
	sender      Sender
	fromAddress string
	fromName    string
}

// NewService creates a new email service
func NewService(sender Sender, fromAddress, fromName string) *Service {
	return &Service{
		sender:      sender,
		fromAddress: fromAddress,
		fromName:    fromName,
	}
}

// SendOrderNotice emails an order status change to the buyer.
func (s *Service) SendOrderNotice(ctx context.Context, to string, notice OrderNotice) error {
	if strings.TrimSpace(to) == "" {
		return ErrNoRecipients
	}

	htmlBody, textBody, err := renderTemplate(notice.TemplateName(), notice)
	if err != nil {
		return fmt.Errorf("failed to render order notice: %w", err)
	}

	email := &Email{
		To:       []string{to},
		From:     fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress),
		Subject:  notice.Subject(),
		HTMLBody: htmlBody,
		TextBody: textBody,
		Headers:  map[string]string{"X-Ponto-Order": notice.OrderNumber},
	}

	if _, err := s.sender.Send(ctx, email); err != nil {
		return fmt.Errorf("failed to send order notice: %w", err)
	}
	return nil
}

// renderTemplate executes the named body template inside the layout and
// returns the HTML and plain text versions.
func renderTemplate(name string, data any) (string, string, error) {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, name, data); err != nil {
		return "", "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	var page bytes.Buffer
	layout := struct{ Body template.HTML }{Body: template.HTML(body.String())}
	if err := templates.ExecuteTemplate(&page, "email_layout", layout); err != nil {
		return "", "", fmt.Errorf("failed to execute layout: %w", err)
	}

	htmlBody := page.String()
	return htmlBody, generatePlainText(htmlBody), nil
}

// generatePlainText creates a simple plain text version from HTML
func generatePlainText(html string) string {
	text := html

	text = strings.ReplaceAll(text, "<br>", "\n")
	text = strings.ReplaceAll(text, "<br/>", "\n")
	text = strings.ReplaceAll(text, "<br />", "\n")
	text = strings.ReplaceAll(text, "</p>", "\n\n")
	text = strings.ReplaceAll(text, "</div>", "\n")
	text = strings.ReplaceAll(text, "</h1>", "\n\n")
	text = strings.ReplaceAll(text, "</h2>", "\n\n")
	text = strings.ReplaceAll(text, "</h3>", "\n\n")

	for strings.Contains(text, "<") && strings.Contains(text, ">") {
		start := strings.Index(text, "<")
		end := strings.Index(text, ">")
		if start >= 0 && end > start {
			text = text[:start] + text[end+1:]
		} else {
			break
		}
	}

	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", "\"")

	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}

	return strings.Join(cleaned, "\n")
}
