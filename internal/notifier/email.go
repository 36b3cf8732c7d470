package notifier

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"signalist/internal/model"
)

// EmailNotifier sends HTML mail over SMTP. It is the email channel.
type EmailNotifier struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// sendMail is smtp.SendMail; replaced in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier creates an SMTP notifier using PLAIN auth when a username is set.
func NewEmailNotifier(host string, port int, username, password, from string) *EmailNotifier {
	return &EmailNotifier{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		sendMail: smtp.SendMail,
	}
}

func (e *EmailNotifier) Notify(ctx context.Context, to model.Recipient, payload model.Payload) error {
	if to.Email == "" {
		return fmt.Errorf("no email address for %s", to.UserID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := buildMessage(e.From, to.Email, Subject(payload), Format(payload), time.Now())

	var auth smtp.Auth
	if e.Username != "" {
		auth = smtp.PlainAuth("", e.Username, e.Password, e.Host)
	}
	addr := net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
	if err := e.sendMail(addr, auth, e.From, []string{to.Email}, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to.Email, err)
	}
	return nil
}

// buildMessage renders an RFC 5322 message; the Telegram HTML body is reused
// with line breaks turned into <br>.
func buildMessage(from, to, subject, body string, now time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "<br>\r\n"))
	return []byte(b.String())
}
