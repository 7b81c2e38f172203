package email_test

import (
	"context"
	"errors"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"experimenter/internal/services"
	"experimenter/internal/services/email"
	"experimenter/internal/testsupport"
)

type received struct {
	from string
	rcpt []string
	data string
}

// fakeSMTP accepts one session and reports what it received.
func fakeSMTP(t *testing.T) (host string, port int, result <-chan received) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	out := make(chan received, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
		tp := textproto.NewConn(conn)
		var got received
		_ = tp.PrintfLine("220 fake ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
			switch verb {
			case "EHLO", "HELO":
				_ = tp.PrintfLine("250-fake")
				_ = tp.PrintfLine("250 8BITMIME")
			case "MAIL":
				got.from = line
				_ = tp.PrintfLine("250 OK")
			case "RCPT":
				got.rcpt = append(got.rcpt, line)
				_ = tp.PrintfLine("250 OK")
			case "DATA":
				_ = tp.PrintfLine("354 go ahead")
				lines, err := tp.ReadDotLines()
				if err != nil {
					return
				}
				got.data = strings.Join(lines, "\n")
				_ = tp.PrintfLine("250 queued")
			case "QUIT":
				_ = tp.PrintfLine("221 bye")
				out <- got
				return
			default:
				_ = tp.PrintfLine("502 unsupported")
			}
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port, out
}

func TestSMTPMailerSendsMessage(t *testing.T) {
	host, port, result := fakeSMTP(t)
	cfg := testsupport.NewConfig(t)
	cfg.Email.Host = host
	cfg.Email.Port = port
	cfg.Email.UseTLS = false

	mailer := email.NewSMTPMailer(cfg)
	msg := email.ReviewMessage("experimenter@example.com", "review@example.com", "Pref Flip", "https://experimenter.test/experiments/pref-flip/", true)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mailer.Send(ctx, msg); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	select {
	case got := <-result:
		if !strings.Contains(got.from, "<experimenter@example.com>") {
			t.Fatalf("unexpected MAIL line %q", got.from)
		}
		if len(got.rcpt) != 1 || !strings.Contains(got.rcpt[0], "<review@example.com>") {
			t.Fatalf("unexpected RCPT lines %v", got.rcpt)
		}
		for _, want := range []string{
			"Subject: Experimenter Review Request: Pref Flip",
			"This experiment requires special attention",
			"https://experimenter.test/experiments/pref-flip/",
		} {
			if !strings.Contains(got.data, want) {
				t.Fatalf("expected data to contain %q, got:\n%s", want, got.data)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("fake server did not receive a message")
	}
}

func TestSMTPMailerRequiresStartTLS(t *testing.T) {
	host, port, _ := fakeSMTP(t)
	cfg := testsupport.NewConfig(t)
	cfg.Email.Host = host
	cfg.Email.Port = port
	cfg.Email.UseTLS = true

	err := email.NewSMTPMailer(cfg).Send(context.Background(), email.ShipMessage("a@example.com", "b@example.com", "X", "u"))
	if !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected external error, got %v", err)
	}
}

func TestSMTPMailerRequiresHost(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Email.Host = ""
	err := email.NewSMTPMailer(cfg).Send(context.Background(), email.ShipMessage("a@example.com", "b@example.com", "X", "u"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSMTPMailerConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Email.Host = "127.0.0.1"
	cfg.Email.Port = port
	err = email.NewSMTPMailer(cfg).Send(context.Background(), email.ShipMessage("a@example.com", "b@example.com", "X", "u"))
	if !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected external error, got %v", err)
	}
	if !strings.Contains(err.Error(), strconv.Itoa(port)) {
		t.Fatalf("expected error to mention the address, got %v", err)
	}
}
