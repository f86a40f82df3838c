package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/jobrag/internal/domain"
	"github.com/kailas-cloud/jobrag/internal/domain/job"
	"github.com/kailas-cloud/jobrag/internal/domain/notification"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type mockChannel struct {
	declared   []string
	kind       string
	published  []published
	declareErr error
	publishErr error
	closed     bool
}

func (m *mockChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	m.declared = append(m.declared, name)
	m.kind = kind
	return m.declareErr
}

func (m *mockChannel) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (m *mockChannel) Close() error {
	m.closed = true
	return nil
}

func testMessage() notification.Message {
	return notification.Message{
		Tenant:         "alice",
		Recipient:      "alice@example.com",
		JobOriginIndex: 3,
		Score:          0.87,
		Job:            job.Job{Title: "Go Engineer", Company: "Acme", Link: "https://acme.example/jobs/1"},
	}
}

func TestNewPublisher_DeclaresTopicExchange(t *testing.T) {
	ch := &mockChannel{}
	p, err := newPublisher(ch, "", zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ch.declared) != 1 || ch.declared[0] != DefaultExchange || ch.kind != amqp.ExchangeTopic {
		t.Errorf("unexpected declare: %v %q", ch.declared, ch.kind)
	}
	if p.exchange != DefaultExchange {
		t.Errorf("expected default exchange, got %q", p.exchange)
	}
}

func TestNewPublisher_DeclareError(t *testing.T) {
	_, err := newPublisher(&mockChannel{declareErr: errors.New("access refused")}, "x", zap.NewNop())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestNotify_PublishesJSON(t *testing.T) {
	ch := &mockChannel{}
	p, err := newPublisher(ch, "matches", zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := p.Notify(context.Background(), testMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ch.published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(ch.published))
	}

	got := ch.published[0]
	if got.exchange != "matches" || got.key != "match.alice" {
		t.Errorf("unexpected routing: %s %s", got.exchange, got.key)
	}
	if got.msg.ContentType != "application/json" || got.msg.DeliveryMode != amqp.Persistent {
		t.Errorf("unexpected publishing: %+v", got.msg)
	}

	var decoded notification.Message
	if err := json.Unmarshal(got.msg.Body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.Job.Title != "Go Engineer" || decoded.JobOriginIndex != 3 {
		t.Errorf("unexpected body: %+v", decoded)
	}
}

func TestNotify_PublishErrorIsTransient(t *testing.T) {
	ch := &mockChannel{}
	p, _ := newPublisher(ch, "", zap.NewNop())
	ch.publishErr = amqp.ErrClosed

	err := p.Notify(context.Background(), testMessage())
	if !errors.Is(err, domain.ErrNotifyFailed) || !domain.IsTransient(err) {
		t.Fatalf("expected transient ErrNotifyFailed, got %v", err)
	}
}

func TestNotify_RejectsMissingRecipient(t *testing.T) {
	ch := &mockChannel{}
	p, _ := newPublisher(ch, "", zap.NewNop())

	msg := testMessage()
	msg.Recipient = ""
	if err := p.Notify(context.Background(), msg); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if len(ch.published) != 0 {
		t.Error("nothing should be published")
	}
}

func TestNotify_CancelledContext(t *testing.T) {
	ch := &mockChannel{}
	p, _ := newPublisher(ch, "", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Notify(ctx, testMessage()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestClose(t *testing.T) {
	ch := &mockChannel{}
	p, _ := newPublisher(ch, "", zap.NewNop())
	if err := p.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ch.closed {
		t.Error("channel not closed")
	}
}
