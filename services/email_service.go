package services

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
)

// EmailConfig holds SMTP settings
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	AppURL   string
}

// EmailService sends transactional mail over SMTP with STARTTLS
type EmailService struct {
	config EmailConfig
}

// NewEmailService creates a new email service
func NewEmailService(config EmailConfig) *EmailService {
	return &EmailService{config: config}
}

// SendVerificationEmail sends the registration verification link. The account
// is only created once the recipient follows it.
func (e *EmailService) SendVerificationEmail(to, name, token string) error {
	link := fmt.Sprintf("%s/api/v1/auth/verify?token=%s", e.config.AppURL, token)

	subject := "Verify your email address"
	body := fmt.Sprintf(`
		<h2>Welcome, %s!</h2>
		<p>Thanks for signing up. Please confirm your email address to activate your account.</p>
		<p><a href="%s">Verify my email</a></p>
		<p>This link expires in 24 hours. If you didn't sign up, you can ignore this email.</p>
	`, name, link)

	return e.send(to, subject, body)
}

// SendPasswordResetEmail sends the password reset link
func (e *EmailService) SendPasswordResetEmail(to, name, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", e.config.AppURL, token)

	subject := "Reset your password"
	body := fmt.Sprintf(`
		<h2>Hi %s,</h2>
		<p>We received a request to reset your password.</p>
		<p><a href="%s">Reset my password</a></p>
		<p>This link expires in 1 hour. If you didn't request a reset, you can ignore this email.</p>
	`, name, link)

	return e.send(to, subject, body)
}

// SendEmailChangeConfirmation sends the confirmation link to the NEW address.
// The change only takes effect once the new address confirms it.
func (e *EmailService) SendEmailChangeConfirmation(to, name, token string) error {
	link := fmt.Sprintf("%s/api/v1/auth/verify-email-change?token=%s", e.config.AppURL, token)

	subject := "Confirm your new email address"
	body := fmt.Sprintf(`
		<h2>Hi %s,</h2>
		<p>You asked to change your account email to this address.</p>
		<p><a href="%s">Confirm new email</a></p>
		<p>This link expires in 24 hours. If you didn't request this change, you can ignore this email.</p>
	`, name, link)

	return e.send(to, subject, body)
}

func (e *EmailService) send(to, subject, htmlBody string) error {
	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)

	msg := []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=UTF-8\r\n"+
		"\r\n%s", e.config.From, to, subject, htmlBody))

	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{ServerName: e.config.Host}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if e.config.Username != "" {
		auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth failed: %w", err)
		}
	}

	if err := client.Mail(e.config.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open message body: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}

	return client.Quit()
}
