// Package smtp delivers match notifications as HTML mail.
package smtp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/jobrag/internal/domain"
	"github.com/kailas-cloud/jobrag/internal/domain/notification"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Config holds the mail relay settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer sends one HTML mail per match.
type Mailer struct {
	addr   string
	auth   smtp.Auth
	from   string
	send   sendFunc
	now    func() time.Time
	logger *zap.Logger
}

// New creates a mailer. Auth is used only when a username is set.
func New(cfg Config, logger *zap.Logger) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("smtp sender address is required")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}

	m := &Mailer{
		addr:   net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		from:   cfg.From,
		send:   smtp.SendMail,
		now:    time.Now,
		logger: logger,
	}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return m, nil
}

// Notify renders and sends the message to its recipient.
func (m *Mailer) Notify(ctx context.Context, msg notification.Message) error {
	if err := msg.Validate(); err != nil {
		return err //nolint:wrapcheck // domain error
	}
	if strings.ContainsAny(msg.Recipient, "\r\n") {
		return domain.InvalidArgf("recipient contains a line break")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	body, err := msg.HTML()
	if err != nil {
		return fmt.Errorf("render mail: %w", err)
	}
	raw := m.compose(msg.Recipient, body)

	if err := m.send(m.addr, m.auth, m.from, []string{msg.Recipient}, raw); err != nil {
		return fmt.Errorf("send mail via %s: %w: %w", m.addr, domain.ErrNotifyFailed, err)
	}

	m.logger.Debug("Match mail sent",
		zap.String("tenant", msg.Tenant),
		zap.Int("job_origin_index", msg.JobOriginIndex),
	)
	return nil
}

func (m *Mailer) compose(to, html string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", notification.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	return b.Bytes()
}
