package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWith(&buf, FormatJSON); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	Get().Named("visits").Info(context.Background(), "visit recorded",
		String("address", "203.0.113.7"),
		Int("count", 3),
		Error(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "visit recorded" {
		t.Errorf("unexpected msg: %v", rec["msg"])
	}
	if rec["logger"] != "visits" {
		t.Errorf("expected logger=visits, got %v", rec["logger"])
	}
	if rec["address"] != "203.0.113.7" {
		t.Errorf("expected address field, got %v", rec["address"])
	}
	if _, ok := rec["source"]; !ok {
		t.Error("expected source field")
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWith(&buf, FormatText); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	if err := SetLevelString("warn"); err != nil {
		t.Fatalf("SetLevelString: %v", err)
	}
	defer func() { _ = SetLevelString("info") }()

	ctx := context.Background()
	Get().Info(ctx, "hidden")
	Get().Warn(ctx, "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record leaked through warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn record missing: %q", out)
	}
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWith(&buf, FormatText); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	Get().With(String("request_id", "abc")).Info(context.Background(), "handled")
	if !strings.Contains(buf.String(), "request_id=abc") {
		t.Errorf("expected request_id in output, got %q", buf.String())
	}
}

func TestSetLevelStringRejectsUnknown(t *testing.T) {
	if err := SetLevelString("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestInitWithUnknownFormat(t *testing.T) {
	if err := InitWith(&bytes.Buffer{}, Format("xml")); err == nil {
		t.Fatal("expected error for unknown format")
	}
	// restore a usable global logger for other tests
	_ = Init()
}

func TestNopLogger(t *testing.T) {
	l := Nop()
	l.Error(context.Background(), "discarded")
	l.Named("x").With(Bool("ok", true)).Info(context.TODO(), "discarded")
}
