package email

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/docuspace/docuspace/internal/config"
	"go.uber.org/zap"
)

func TestSMTPSendHonorsContextDeadline(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	// Accept connections but never speak SMTP, so the client hangs waiting
	// for the greeting.
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn
		}
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}

	p := NewSMTPProvider(config.EmailConfig{
		SMTPHost: host,
		SMTPPort: port,
		SMTPFrom: "noreply@example.com",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = p.Send(ctx, Message{To: "a@b.co", Subject: "hello", Body: "body"})
	if err != context.DeadlineExceeded {
		t.Fatalf("err = %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("send did not return at the deadline")
	}
}

func TestNoOpProviderSucceeds(t *testing.T) {
	p := NewNoOpProvider(zap.NewNop())
	if err := p.Send(context.Background(), Message{To: "a@b.co"}); err != nil {
		t.Fatalf("send: %v", err)
	}
}
