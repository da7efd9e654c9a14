package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// captureLogOutput captures log output for testing by temporarily
// redirecting the logger to write to a buffer
func captureLogOutput(f func()) string {
	var buf bytes.Buffer

	oldLogger := defaultLogger
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	defaultLogger = slog.New(handler)

	f()

	defaultLogger = oldLogger
	return buf.String()
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name      string
		level     Level
		format    Format
		logDebug  bool
		wantJSON  bool
		wantEmpty bool
	}{
		{name: "debug json", level: LevelDebug, format: FormatJSON, logDebug: true, wantJSON: true},
		{name: "info text drops debug", level: LevelInfo, format: FormatText, logDebug: true, wantEmpty: true},
		{name: "info text", level: LevelInfo, format: FormatText},
		{name: "invalid level defaults to info", level: Level(999), format: FormatJSON, wantJSON: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			InitLogger(tt.level, tt.format, &buf)
			defer InitLogger(LevelInfo, FormatText, nil)

			if tt.logDebug {
				DebugContext(context.Background(), "hello", "k", "v")
			} else {
				InfoContext(context.Background(), "hello", "k", "v")
			}

			out := buf.String()
			if tt.wantEmpty {
				if out != "" {
					t.Errorf("expected no output, got %q", out)
				}
				return
			}
			if !strings.Contains(out, "hello") {
				t.Fatalf("output missing message: %q", out)
			}
			if tt.wantJSON {
				var m map[string]any
				if err := json.Unmarshal([]byte(out), &m); err != nil {
					t.Fatalf("expected JSON output: %v", err)
				}
				if m["k"] != "v" {
					t.Errorf("k = %v, want v", m["k"])
				}
			} else if !strings.Contains(out, "k=v") {
				t.Errorf("text output missing k=v: %q", out)
			}
		})
	}
}

func TestParseLevelAndFormat(t *testing.T) {
	levels := map[string]Level{"debug": LevelDebug, "": LevelInfo, "INFO": LevelInfo, "warn": LevelWarn, "error": LevelError}
	for in, want := range levels {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel(loud) expected error")
	}

	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(json) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) expected error")
	}
}

func TestRunIDContext(t *testing.T) {
	ctx := context.Background()
	if GetRunID(ctx) != "" {
		t.Error("expected empty run id")
	}
	ctx = WithJob(WithRunID(ctx, "abc123"), "scaffold")
	if GetRunID(ctx) != "abc123" {
		t.Errorf("GetRunID() = %q", GetRunID(ctx))
	}

	out := captureLogOutput(func() {
		InfoContext(ctx, "started")
	})
	if !strings.Contains(out, `"run_id":"abc123"`) || !strings.Contains(out, `"job":"scaffold"`) {
		t.Errorf("context fields missing: %s", out)
	}
}

func TestLoggingFunctions(t *testing.T) {
	tests := []struct {
		name    string
		logFunc func()
		want    string
	}{
		{"InfoContext", func() { InfoContext(context.Background(), "i") }, `"level":"INFO"`},
		{"WarnContext", func() { WarnContext(context.Background(), "w") }, `"level":"WARN"`},
		{"ErrorContext", func() { ErrorContext(context.Background(), "e") }, `"level":"ERROR"`},
		{"DebugContext", func() { DebugContext(context.Background(), "d") }, `"level":"DEBUG"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureLogOutput(tt.logFunc)
			if !strings.Contains(out, tt.want) {
				t.Errorf("output %q missing %q", out, tt.want)
			}
		})
	}
}

func TestStageEvent(t *testing.T) {
	out := captureLogOutput(func() {
		StageEvent(WithRunID(context.Background(), "r1"), "apply_verses", "rows", 12)
	})
	for _, want := range []string{`"stage":"apply_verses"`, `"rows":12`, `"run_id":"r1"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if len(a) != 16 || a == b {
		t.Errorf("NewRunID() = %q, %q", a, b)
	}
}

func TestTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewTransport(nil)}
	out := captureLogOutput(func() {
		req, _ := http.NewRequestWithContext(WithRunID(context.Background(), "r2"), http.MethodGet, srv.URL+"/rest/v1/bible_books?select=id", nil)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
	})

	for _, want := range []string{`"msg":"http_request"`, `"status_code":418`, `"run_id":"r2"`, "/rest/v1/bible_books"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
	if strings.Contains(out, "select=id") {
		t.Error("query string should not be logged")
	}
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestTransportError(t *testing.T) {
	client := &http.Client{Transport: NewTransport(failingTransport{})}
	out := captureLogOutput(func() {
		if _, err := client.Get("http://example.invalid/x"); err == nil {
			t.Error("expected error")
		}
	})
	if !strings.Contains(out, "connection refused") {
		t.Errorf("error not logged: %s", out)
	}
}
