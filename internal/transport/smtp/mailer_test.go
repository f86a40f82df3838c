package smtp

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/jobrag/internal/domain"
	"github.com/kailas-cloud/jobrag/internal/domain/job"
	"github.com/kailas-cloud/jobrag/internal/domain/notification"
)

type sentMail struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func newTestMailer(t *testing.T, cfg Config, err error) (*Mailer, *[]sentMail) {
	t.Helper()
	m, nerr := New(cfg, zap.NewNop())
	if nerr != nil {
		t.Fatalf("New: %v", nerr)
	}
	var sent []sentMail
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		if err != nil {
			return err
		}
		sent = append(sent, sentMail{addr: addr, auth: a, from: from, to: to, msg: string(msg)})
		return nil
	}
	m.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return m, &sent
}

func testMessage() notification.Message {
	return notification.Message{
		Tenant:    "alice",
		Recipient: "alice@example.com",
		Score:     0.731,
		Job:       job.Job{Title: "SRE", Company: "Initech", Link: "https://initech.example/sre"},
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{From: "a@b"}, zap.NewNop()); err == nil {
		t.Error("expected error without host")
	}
	if _, err := New(Config{Host: "mail"}, zap.NewNop()); err == nil {
		t.Error("expected error without sender")
	}
}

func TestNotify_SendsHTMLMail(t *testing.T) {
	m, sent := newTestMailer(t, Config{Host: "mail.example", From: "jobs@example.com", Username: "u", Password: "p"}, nil)

	if err := m.Notify(context.Background(), testMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(*sent))
	}

	got := (*sent)[0]
	if got.addr != "mail.example:587" || got.from != "jobs@example.com" || got.to[0] != "alice@example.com" {
		t.Errorf("unexpected envelope: %+v", got)
	}
	if got.auth == nil {
		t.Error("expected auth when username is set")
	}
	for _, want := range []string{
		"Subject: " + notification.Subject,
		"Content-Type: text/html",
		"<strong>73%</strong>",
		"<strong>SRE</strong> at <strong>Initech</strong>",
		`href="https://initech.example/sre"`,
	} {
		if !strings.Contains(got.msg, want) {
			t.Errorf("mail missing %q:\n%s", want, got.msg)
		}
	}
}

func TestNotify_NoAuthWithoutUsername(t *testing.T) {
	m, sent := newTestMailer(t, Config{Host: "relay", Port: 25, From: "jobs@example.com"}, nil)
	if err := m.Notify(context.Background(), testMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if (*sent)[0].auth != nil || (*sent)[0].addr != "relay:25" {
		t.Errorf("unexpected mail: %+v", (*sent)[0])
	}
}

func TestNotify_SendErrorIsTransient(t *testing.T) {
	m, _ := newTestMailer(t, Config{Host: "relay", From: "jobs@example.com"}, errors.New("421 try later"))
	err := m.Notify(context.Background(), testMessage())
	if !errors.Is(err, domain.ErrNotifyFailed) || !domain.IsTransient(err) {
		t.Fatalf("expected transient ErrNotifyFailed, got %v", err)
	}
}

func TestNotify_RejectsHeaderInjection(t *testing.T) {
	m, sent := newTestMailer(t, Config{Host: "relay", From: "jobs@example.com"}, nil)
	msg := testMessage()
	msg.Recipient = "alice@example.com\r\nBcc: eve@example.com"

	if err := m.Notify(context.Background(), msg); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if len(*sent) != 0 {
		t.Error("nothing should be sent")
	}
}
