package publisher

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/kmori/arxiv-digest/internal/report"
)

// EmailPublisher sends the digest as an HTML email via SMTP.
type EmailPublisher struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string
}

func NewEmailPublisher(host string, port int, username, password, from string, to []string) *EmailPublisher {
	return &EmailPublisher{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
	}
}

func (p *EmailPublisher) Publish(_ context.Context, digest *report.Digest) error {
	subject := fmt.Sprintf("arXiv Digest - %s", digest.Date.Format("2006-01-02"))
	body := report.BuildHTML(digest)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		p.from,
		strings.Join(p.to, ","),
		subject,
		body,
	)

	addr := fmt.Sprintf("%s:%d", p.host, p.port)
	auth := smtp.PlainAuth("", p.username, p.password, p.host)

	if err := smtp.SendMail(addr, auth, p.from, p.to, []byte(msg)); err != nil {
		return fmt.Errorf("email: failed to send: %w", err)
	}

	return nil
}
