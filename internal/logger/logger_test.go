package logger

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/simplesconnect/simples-connect/internal/config"
)

// captureOutput redirects stdout to a buffer during f()
func captureOutput(t *testing.T, f func()) string {
	t.Helper()

	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	f()

	_ = w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	_ = r.Close()

	return buf.String()
}

func TestLogger_TextFormat(t *testing.T) {
	out := captureOutput(t, func() {
		InitFromConfig(&config.Config{
			Log: config.LogConfig{
				Level:     "debug",
				Format:    "text",
				Component: "test",
			},
		})
		Info("hello simples", "key", "value")
	})

	if !strings.Contains(out, "hello simples") {
		t.Errorf("expected message, got: %s", out)
	}
	if !strings.Contains(out, "component=test") {
		t.Errorf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "key=value") {
		t.Errorf("expected structured field, got: %s", out)
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	out := captureOutput(t, func() {
		InitFromConfig(&config.Config{
			Log: config.LogConfig{
				Level:     "info",
				Format:    "json",
				Component: "json_test",
			},
		})
		Info("json log", "foo", "bar")
	})

	if !strings.Contains(out, `"msg":"json log"`) {
		t.Errorf("expected JSON message, got: %s", out)
	}
	if !strings.Contains(out, `"component":"json_test"`) {
		t.Errorf("expected component in JSON, got: %s", out)
	}
	if !strings.Contains(out, `"foo":"bar"`) {
		t.Errorf("expected structured field in JSON, got: %s", out)
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	out := captureOutput(t, func() {
		InitFromConfig(&config.Config{
			Log: config.LogConfig{Level: "error", Format: "text"},
		})
		Info("should not appear")
		Error("should appear")
	})

	if strings.Contains(out, "should not appear") {
		t.Errorf("info log should not appear, got: %s", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("error log should appear, got: %s", out)
	}
}

func TestLogger_WithAddsFields(t *testing.T) {
	out := captureOutput(t, func() {
		InitFromConfig(&config.Config{
			Log: config.LogConfig{Level: "debug", Format: "text"},
		})
		log := With("req_id", "123")
		log.Info("processing request")
	})

	if !strings.Contains(out, "req_id=123") {
		t.Errorf("expected req_id field, got: %s", out)
	}
}

func TestLogger_NilConfigKeepsDefaults(t *testing.T) {
	out := captureOutput(t, func() {
		InitFromConfig(nil)
		Warn("still logging")
	})

	if !strings.Contains(out, "still logging") {
		t.Errorf("expected default logger output, got: %s", out)
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	reqLog := New(&buf, Config{Level: "debug", Format: FormatJSON}).With("request_id", "abc")
	fallback := New(&bytes.Buffer{}, Config{})

	ctx := WithContext(context.Background(), reqLog)
	FromContext(ctx, fallback).Info("scoped")

	if !strings.Contains(buf.String(), `"request_id":"abc"`) {
		t.Errorf("expected request scoped logger, got: %s", buf.String())
	}
	if FromContext(context.Background(), fallback) != fallback {
		t.Errorf("expected fallback logger when ctx carries none")
	}
}
