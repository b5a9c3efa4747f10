package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"futurebot/pkg/exception"
)

// SMTPConfig configures the email sender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// Email sends plain text email through an SMTP relay.
type Email struct {
	cfg  SMTPConfig
	loc  *time.Location
	now  func() time.Time
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmail returns nil when no host or recipient is configured.
func NewEmail(cfg SMTPConfig, loc *time.Location) *Email {
	if cfg.Host == "" || cfg.To == "" {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Email{cfg: cfg, loc: loc, now: time.Now, send: smtp.SendMail}
}

// Send delivers m. The body is prefixed with the local send time.
func (e *Email) Send(ctx context.Context, m Message) error {
	if e == nil {
		return exception.ErrNotifyDisabled
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}
	if err := e.send(addr, auth, e.cfg.From, []string{e.cfg.To}, e.compose(m)); err != nil {
		return fmt.Errorf("%w: smtp %s: %w", exception.ErrNotifyFailed, addr, err)
	}
	return nil
}

func (e *Email) compose(m Message) []byte {
	now := e.now().In(e.loc)
	var b strings.Builder
	b.WriteString("From: Trader <" + e.cfg.From + ">\r\n")
	b.WriteString("To: Trader <" + e.cfg.To + ">\r\n")
	b.WriteString("Subject: " + m.Subject + "\r\n")
	b.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(now.Format("2006-01-02 15:04:05 MST") + "\n")
	b.WriteString(m.Body)
	return []byte(b.String())
}
