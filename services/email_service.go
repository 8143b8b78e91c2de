package services

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/sahilchouksey/edu-materials-api/config"
	"go.uber.org/zap"
)

var ErrSMTPNotConfigured = errors.New("SMTP not configured")

// EmailService handles sending emails via SMTP
type EmailService struct {
	host     string
	port     int
	username string
	password string
	from     string
	appURL   string
	log      *zap.Logger
}

// NewEmailService creates a new email service instance
func NewEmailService(env *config.EnvironmentVariables, log *zap.Logger) *EmailService {
	return &EmailService{
		host:     env.SMTPHost,
		port:     env.SMTPPort,
		username: env.SMTPUsername,
		password: env.SMTPPassword,
		from:     env.SMTPFrom,
		appURL:   strings.TrimRight(env.AppURL, "/"),
		log:      log,
	}
}

// IsConfigured checks if SMTP is properly configured
func (e *EmailService) IsConfigured() bool {
	return e.username != "" && e.password != ""
}

// From returns the sender address, also used as the admin summary recipient
func (e *EmailService) From() string {
	return e.from
}

// AppURL returns the public base URL used in email links
func (e *EmailService) AppURL() string {
	return e.appURL
}

// Send delivers one HTML message to a single recipient
func (e *EmailService) Send(ctx context.Context, to, subject, htmlBody string) error {
	if !e.IsConfigured() {
		return ErrSMTPNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.sendEmail(to, subject, htmlBody)
}

// SendWelcomeEmail greets a newly registered user
func (e *EmailService) SendWelcomeEmail(ctx context.Context, toEmail, firstName string) error {
	if firstName == "" {
		firstName = "there"
	}

	body := wrapHTML("Welcome", fmt.Sprintf(
		`<h2>Hi %s,</h2>
<p>Your account has been created. You can now browse courses, subscribe to the ones you like and get notified when they change.</p>
<p><a class="button" href="%s/courses/">Browse courses</a></p>`,
		html.EscapeString(firstName), e.appURL))

	return e.Send(ctx, toEmail, "Welcome to the learning platform", body)
}

// SendInactiveUsersSummary reports accounts deactivated by the daily cleanup
func (e *EmailService) SendInactiveUsersSummary(ctx context.Context, emails []string, days int) error {
	var items strings.Builder
	for _, email := range emails {
		items.WriteString("<li>" + html.EscapeString(email) + "</li>\n")
	}

	body := wrapHTML("Inactive users", fmt.Sprintf(
		`<h2>%d account(s) deactivated</h2>
<p>These users had not logged in for more than %d days:</p>
<ul>
%s</ul>`, len(emails), days, items.String()))

	return e.Send(ctx, e.from, fmt.Sprintf("Deactivated %d inactive users", len(emails)), body)
}

// CourseUpdateBody renders the notification sent to course subscribers
func CourseUpdateBody(courseTitle, message, link string) string {
	return wrapHTML("Course update", fmt.Sprintf(
		`<h2>%s has been updated</h2>
<p>%s</p>
<p><a class="button" href="%s">Open the course</a></p>
<p class="link-text">%s</p>`,
		html.EscapeString(courseTitle), html.EscapeString(message), link, link))
}

func wrapHTML(title, content string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>%s</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .button { display: inline-block; background-color: #2d5016; color: #ffffff !important; padding: 12px 24px; text-decoration: none; border-radius: 6px; }
        .link-text { word-break: break-all; color: #666; font-size: 12px; }
    </style>
</head>
<body>
%s
</body>
</html>`, html.EscapeString(title), content)
}

// sendEmail sends an email using SMTP with STARTTLS
func (e *EmailService) sendEmail(to, subject, htmlBody string) error {
	headers := []string{
		"From: " + e.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
	}

	var message strings.Builder
	for _, h := range headers {
		message.WriteString(h + "\r\n")
	}
	message.WriteString("\r\n")
	message.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	auth := smtp.PlainAuth("", e.username, e.password, e.host)

	conn, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	if err := conn.StartTLS(&tls.Config{ServerName: e.host}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	if err := conn.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}

	if err := conn.Mail(e.from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}

	if err := conn.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := conn.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}

	if _, err := w.Write([]byte(message.String())); err != nil {
		return fmt.Errorf("failed to write email body: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	_ = conn.Quit()

	e.log.Debug("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
