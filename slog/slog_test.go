package slog_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/birdie-ai/ormkit/slog"
	"github.com/google/go-cmp/cmp"
)

func ExampleNew() {
	h, err := slog.NewHandler(os.Stdout, slog.Config{Level: slog.LevelWarn, Format: slog.FormatJSON})
	if err != nil {
		panic(err)
	}
	logger := slog.New(h)
	logger.Info("omit", "a", 666)
	logger.Warn("yeah", "b", "yeah")
}

func TestLoadConfigDefault(t *testing.T) {
	config, err := slog.LoadConfig("DEFAULT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := slog.Config{Level: slog.DefaultLevel, Format: slog.DefaultFormat}
	if diff := cmp.Diff(want, config); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv(logLevelEnv, "debug")
	t.Setenv(logFmtEnv, "json")

	config, err := slog.LoadConfig(service)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := slog.Config{Level: slog.LevelDebug, Format: slog.FormatJSON}
	if diff := cmp.Diff(want, config); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigErr(t *testing.T) {
	t.Setenv(logLevelEnv, "debug")
	t.Setenv(logFmtEnv, "wrong")

	config, err := slog.LoadConfig(service)
	if err == nil {
		t.Fatalf("expected error, got config: %v", config)
	}

	t.Setenv(logLevelEnv, "wrong")
	t.Setenv(logFmtEnv, "text")

	config, err = slog.LoadConfig(service)
	if err == nil {
		t.Fatalf("expected error, got config: %v", config)
	}
}

func TestNewHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h, err := slog.NewHandler(&buf, slog.Config{Level: slog.LevelInfo, Format: slog.FormatJSON})
	if err != nil {
		t.Fatal(err)
	}
	log := slog.New(h).With("trace_id", "abc")
	log.Debug("omitted")
	log.Info("applied", "links", 2)

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("want a single JSON record: %v: %s", err, buf.String())
	}
	delete(got, "time")
	want := map[string]any{"level": "INFO", "msg": "applied", "links": 2.0, "trace_id": "abc"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}

	buf.Reset()
	h, err = slog.NewHandler(&buf, slog.Config{Level: slog.LevelDisable, Format: slog.FormatText})
	if err != nil {
		t.Fatal(err)
	}
	slog.New(h).Error("omitted")
	if buf.Len() > 0 {
		t.Fatalf("disabled logger wrote %q", buf.String())
	}

	if _, err := slog.NewHandler(&buf, slog.Config{Format: "xml"}); err == nil {
		t.Fatal("want error for unknown format")
	}
}

func TestTextHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h, err := slog.NewHandler(&buf, slog.Config{Level: slog.LevelDebug, Format: slog.FormatText})
	if err != nil {
		t.Fatal(err)
	}
	slog.New(h).Debug("matched", "id", 1)
	if got := buf.String(); !strings.Contains(got, "msg=matched id=1") {
		t.Fatalf("got %q; want text record", got)
	}
}

func TestContextIntegration(t *testing.T) {
	want := &slog.Logger{}
	ctx := slog.NewContext(context.Background(), want)
	got := slog.FromCtx(ctx)

	if want != got {
		t.Fatalf("got %+v != want %+v", got, want)
	}
}

func TestDefaultLoggerFromContext(t *testing.T) {
	got := slog.FromCtx(context.Background())
	if got == nil {
		t.Fatal("want valid logger, got nil")
	}
}

func TestParseLevel(t *testing.T) {
	testcases := []struct {
		Input  string
		Output slog.Level
	}{
		{Input: "", Output: slog.LevelInfo},
		{Input: "info", Output: slog.LevelInfo},
		{Input: "DEBUG", Output: slog.LevelDebug},
		{Input: "warn", Output: slog.LevelWarn},
		{Input: "error", Output: slog.LevelError},
		{Input: "disable", Output: slog.LevelDisable},
	}
	for _, tc := range testcases {
		t.Run(tc.Input, func(t *testing.T) {
			level, err := slog.ParseLevel(tc.Input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if level != tc.Output {
				t.Errorf("got %v, want %v", level, tc.Output)
			}
		})
	}

	if _, err := slog.ParseLevel("invalid"); err == nil {
		t.Fatal("want error, got nil")
	}
}

func TestParseFormat(t *testing.T) {
	testcases := []struct {
		Input  string
		Output slog.Format
	}{
		{Input: "", Output: slog.FormatText},
		{Input: "json", Output: slog.FormatJSON},
		{Input: "Text", Output: slog.FormatText},
	}
	for _, tc := range testcases {
		t.Run(tc.Input, func(t *testing.T) {
			format, err := slog.ParseFormat(tc.Input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if format != tc.Output {
				t.Errorf("got %v, want %v", format, tc.Output)
			}
		})
	}

	if _, err := slog.ParseFormat("gcloud"); err == nil {
		t.Fatal("want error, got nil")
	}
}

func ExampleConfigure() {
	cfg, err := slog.LoadConfig("ORMKIT")
	if err != nil {
		panic(err)
	}
	if err := slog.Configure(cfg); err != nil {
		panic(err)
	}
	slog.Info("info msg", "key", "val", "key2", 666)
}

func ExampleLogger() {
	log := slog.Default()
	log = log.With("a", "val")
	log.Debug("debug", "b", 666)
	log.Info("info", "b", 666)
}

const (
	service     = "TEST"
	logLevelEnv = service + "_LOG_LEVEL"
	logFmtEnv   = service + "_LOG_FMT"
)
