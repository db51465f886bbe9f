package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerErrorCarriesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithOrderID(ctx, "order-9")
	log.Error(ctx, "boom", errors.New("kaput"))

	out := buf.String()
	for _, want := range []string{`"request_id":"req-123"`, `"order_id":"order-9"`, `"error":"kaput"`, `"service":"test"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in entry=%s", want, out)
		}
	}
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf, WarnStack: true})
	log.Warn(context.Background(), "warny")
	if !strings.Contains(buf.String(), `"stack"`) {
		t.Fatalf("expected stack when warn stack enabled: %s", buf.String())
	}

	buf.Reset()
	log = New(Options{ServiceName: "test", Output: buf})
	log.Warn(context.Background(), "warny")
	if strings.Contains(buf.String(), `"stack"`) {
		t.Fatalf("did not expect stack: %s", buf.String())
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: zerolog.WarnLevel, Output: buf})
	log.Info(context.Background(), "quiet")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level: %s", buf.String())
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected info for empty input, got %v", lvl)
	}
	if lvl := ParseLevel("invalid"); lvl != zerolog.InfoLevel {
		t.Fatalf("invalid level should fall back to info, got %v", lvl)
	}
	if lvl := ParseLevel(" DEBUG "); lvl != zerolog.DebugLevel {
		t.Fatalf("expected debug, got %v", lvl)
	}
}
