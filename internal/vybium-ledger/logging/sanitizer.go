// Package logging builds the services' structured loggers. Records pass
// through a sanitizing handler that redacts key material and replaces
// authorization blobs with fingerprints.
package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const redactedValue = "[REDACTED]"

var (
	bootNonce         = randomNonce()
	sensitiveKeyParts = []string{"private_key", "seed", "mnemonic", "secret", "password", "token"}
	fingerprintParts  = []string{"authorization", "auth_blob"}
)

// New returns a JSON logger writing to w at level, wrapped in the sanitizer.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(WrapHandler(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

// ParseLevel maps debug, info, warn and error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", s, err)
	}
	return l, nil
}

// SanitizingHandler rewrites every attribute before passing the record on.
type SanitizingHandler struct {
	next slog.Handler
}

// WrapHandler wraps next. A nil next yields nil.
func WrapHandler(next slog.Handler) slog.Handler {
	if next == nil {
		return nil
	}
	return &SanitizingHandler{next: next}
}

func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SanitizingHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(SanitizeAttr(attr))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SanitizingHandler{next: h.next.WithAttrs(sanitizeAttrs(attrs))}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{next: h.next.WithGroup(name)}
}

// SanitizeAttr redacts or fingerprints one attribute, recursing into groups.
func SanitizeAttr(attr slog.Attr) slog.Attr {
	key := strings.TrimSpace(attr.Key)
	lower := strings.ToLower(key)
	switch {
	case matchesAny(lower, sensitiveKeyParts):
		return slog.String(key, redactedValue)
	case matchesAny(lower, fingerprintParts):
		return slog.String(fingerprintKeyName(key), Fingerprint(valueBytes(attr.Value)))
	case attr.Value.Kind() == slog.KindGroup:
		return slog.Attr{Key: key, Value: slog.GroupValue(sanitizeAttrs(attr.Value.Group())...)}
	}
	return attr
}

// Fingerprint returns a short process-local digest of b. Equal inputs give
// equal fingerprints until the process restarts.
func Fingerprint(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	h, _ := blake2b.New256([]byte(bootNonce))
	h.Write(b)
	return "fp_" + hex.EncodeToString(h.Sum(nil)[:8])
}

func sanitizeAttrs(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, SanitizeAttr(attr))
	}
	return out
}

func matchesAny(key string, parts []string) bool {
	for _, part := range parts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

func fingerprintKeyName(key string) string {
	if strings.HasSuffix(strings.ToLower(key), "_fp") {
		return key
	}
	return key + "_fp"
}

func valueBytes(v slog.Value) []byte {
	v = v.Resolve()
	if v.Kind() == slog.KindAny {
		if b, ok := v.Any().([]byte); ok {
			return b
		}
	}
	return []byte(v.String())
}

func randomNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "fallback_nonce"
	}
	return hex.EncodeToString(buf)
}
