package speakauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func newAuditedEngine(t *testing.T, sink AuditSink) *Engine {
	t.Helper()

	_, client := newTestRedis(t)

	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64

	engine, err := New().WithConfig(cfg).WithRedis(client).WithAuditSink(sink).Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine
}

func waitForEvent(t *testing.T, sink *ChannelSink, eventType string) AuditEvent {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.EventType == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", eventType)
		}
	}
}

func TestAuditEmitsLoginEvents(t *testing.T) {
	sink := NewChannelSink(64)
	e := newAuditedEngine(t, sink)
	ctx := context.Background()

	reg := registerTestUser(t, e, "audit@example.com")

	ev := waitForEvent(t, sink, auditEventRegisterSuccess)
	if !ev.Success || ev.UserID != reg.User.ID {
		t.Fatalf("unexpected register event: %+v", ev)
	}

	if _, err := e.Login(ctx, Credentials{Email: "audit@example.com", Password: "WrongPass123!"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected failed login, got %v", err)
	}

	ev = waitForEvent(t, sink, auditEventLoginFailure)
	if ev.Success {
		t.Fatalf("failure event marked success: %+v", ev)
	}
	if ev.Error != string(auditErrInvalidCredentials) {
		t.Fatalf("error code %q, want %q", ev.Error, auditErrInvalidCredentials)
	}
	if ev.Metadata["reason"] != "password_mismatch" {
		t.Fatalf("unexpected metadata: %+v", ev.Metadata)
	}
}

func TestAuditEventsNeverCarrySecrets(t *testing.T) {
	sink := NewChannelSink(64)
	e := newAuditedEngine(t, sink)

	reg := registerTestUser(t, e, "secrets@example.com")

	ev := waitForEvent(t, sink, auditEventRegisterSuccess)
	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}

	for _, needle := range []string{"TestPass123!", reg.Token} {
		if strings.Contains(string(raw), needle) {
			t.Fatalf("audit event leaks %q: %s", needle, raw)
		}
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now(),
		EventType: auditEventLoginSuccess,
		UserID:    "u-1",
		Success:   true,
	})

	var decoded AuditEvent
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded); err != nil {
		t.Fatalf("output is not a JSON line: %v", err)
	}
	if decoded.EventType != auditEventLoginSuccess || decoded.UserID != "u-1" {
		t.Fatalf("unexpected decoded event: %+v", decoded)
	}
}

func TestDispatcherFlushesBufferOnClose(t *testing.T) {
	sink := NewChannelSink(8)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8}, sink)

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		d.Emit(ctx, AuditEvent{EventType: auditEventLogoutSession})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 4; i++ {
			<-sink.Events()
		}
	}()

	d.Close()
	d.Close() // second close must be a no-op

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("buffered events never reached the sink")
	}

	// Past close, emits are discarded without panicking.
	d.Emit(ctx, AuditEvent{EventType: auditEventLogoutSession})
}

type stallSink struct {
	release chan struct{}
}

func (s *stallSink) Emit(ctx context.Context, event AuditEvent) {
	<-s.release
}

func TestDispatcherDropsWhenBufferFull(t *testing.T) {
	sink := &stallSink{release: make(chan struct{})}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	defer func() {
		close(sink.release)
		d.Close()
	}()

	ctx := context.Background()
	for i := 0; i < 16; i++ {
		d.Emit(ctx, AuditEvent{EventType: auditEventLoginSuccess})
	}

	if d.Dropped() == 0 {
		t.Fatal("expected dropped events with a stalled sink")
	}
}
