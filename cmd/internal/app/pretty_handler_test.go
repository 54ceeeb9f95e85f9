package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyHandlerPlainOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}, false))

	log.Info("http.request",
		"method", "GET",
		"path", "/api/v1/nonce",
		"status", 200,
		"status_class", "2xx",
		"duration_ms", 12,
		"user_agent", "Mozilla 5.0",
	)

	out := buf.String()
	for _, want := range []string{
		"lvl=[INFO]",
		"msg=http.request",
		"method=GET",
		"path=/api/v1/nonce",
		"status=200",
		"class=2xx",
		"duration=12ms",
		`user_agent="Mozilla 5.0"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, ansiReset) {
		t.Fatalf("plain mode must emit no ANSI codes:\n%s", out)
	}
}

func TestPrettyHandlerColorOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}, true))

	log.Info("server.start", "addr", "0.0.0.0:8080")

	out := buf.String()
	if !strings.Contains(out, ansiBlue+"[INFO]"+ansiReset) {
		t.Fatalf("info level should render blue:\n%s", out)
	}
	if !strings.Contains(out, `addr="0.0.0.0:8080"`) && !strings.Contains(out, "addr=0.0.0.0:8080") {
		t.Fatalf("missing addr attr:\n%s", out)
	}
}

func TestPrettyHandlerRespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}, false))

	log.Info("dropped")
	log.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info record should be filtered:\n%s", out)
	}
	if !strings.Contains(out, "lvl=[WARN]") || !strings.Contains(out, "msg=kept") {
		t.Fatalf("warn record missing:\n%s", out)
	}
}

func TestQuoteIfNeeded(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "", want: `""`},
		{in: "plain", want: "plain"},
		{in: "two words", want: `"two words"`},
		{in: `a="b"`, want: `"a=\"b\""`},
	}

	for _, tc := range cases {
		if got := quoteIfNeeded(tc.in); got != tc.want {
			t.Fatalf("quoteIfNeeded(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}
