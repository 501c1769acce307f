package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}
	return payload
}

func TestLoggerRedactsKeyMaterial(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo)
	logger.Info("authorize",
		"private_key", "APrivateKey1abc",
		"seed", "correct horse",
		"recipient", "vy1xyz",
		"amount", 100,
	)

	payload := decode(t, &buf)
	for _, key := range []string{"private_key", "seed"} {
		if got, _ := payload[key].(string); got != redactedValue {
			t.Fatalf("%s = %q, want redacted", key, got)
		}
	}
	if payload["recipient"] != "vy1xyz" {
		t.Fatalf("recipient was rewritten: %v", payload["recipient"])
	}
	if strings.Contains(buf.String(), "correct horse") {
		t.Fatalf("seed leaked into the log: %s", buf.String())
	}
}

func TestLoggerFingerprintsAuthorizations(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo)
	blob := []byte{1, 2, 3, 4}
	logger.Info("execute", "function_authorization", blob)

	payload := decode(t, &buf)
	if _, ok := payload["function_authorization"]; ok {
		t.Fatal("raw authorization should not be present")
	}
	got, _ := payload["function_authorization_fp"].(string)
	if got != Fingerprint(blob) || !strings.HasPrefix(got, "fp_") {
		t.Fatalf("fingerprint = %q, want %q", got, Fingerprint(blob))
	}
	if Fingerprint(blob) == Fingerprint([]byte{1, 2, 3, 5}) {
		t.Fatal("distinct blobs share a fingerprint")
	}
}

func TestSanitizingHandlerGroupsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := WrapHandler(slog.NewJSONHandler(&buf, nil))
	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected handler enabled for info")
	}
	h = h.WithAttrs([]slog.Attr{slog.String("mnemonic", "abandon abandon")})
	rec := slog.NewRecord(time.Now().UTC(), slog.LevelInfo, "keygen", 0)
	rec.AddAttrs(slog.Group("request", slog.String("secret_seed", "x"), slog.Int("status", 200)))
	if err := h.Handle(context.Background(), rec); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	payload := decode(t, &buf)
	if payload["mnemonic"] != redactedValue {
		t.Fatalf("mnemonic = %v", payload["mnemonic"])
	}
	group, _ := payload["request"].(map[string]any)
	if group["secret_seed"] != redactedValue || group["status"] != float64(200) {
		t.Fatalf("group = %v", group)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{" warn ", slog.LevelWarn, true},
		{"loud", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err == nil) != tt.ok || (tt.ok && got != tt.want) {
			t.Fatalf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}
