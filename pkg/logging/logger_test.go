package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/castarchive/castarchive/pkg/config"
)

func newScalyrLogger(buf *bytes.Buffer) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:       "timestamp",
		LevelKey:      "level",
		MessageKey:    "message",
		CallerKey:     "caller",
		StacktraceKey: "stacktrace",
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeLevel:   zapcore.LowercaseLevelEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}
	core := zapcore.NewCore(NewScalyrEncoder(encoderConfig), zapcore.AddSync(buf), zapcore.InfoLevel)
	return zap.New(core)
}

func TestScalyrEncoder(t *testing.T) {
	cfg := &config.LoggingConfig{
		Level:        "INFO",
		Format:       "json",
		ScalyrFormat: true,
	}

	if err := InitLogger(cfg); err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}

	var buf bytes.Buffer
	logger := newScalyrLogger(&buf)

	logger.Info("test message",
		zap.String("key", "value"),
		zap.Uint64("fid", 6546),
		zap.Duration("delay", 2*time.Second),
		zap.Error(errors.New("boom")))

	var logObj map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logObj); err != nil {
		t.Fatalf("Failed to parse JSON: %v", err)
	}

	if logObj["message"] != "test message" {
		t.Errorf("Expected message 'test message', got: %v", logObj["message"])
	}
	if logObj["key"] != "value" {
		t.Errorf("Expected field 'key'='value', got: %v", logObj["key"])
	}
	if logObj["fid"] != float64(6546) {
		t.Errorf("Expected field 'fid'=6546, got: %v", logObj["fid"])
	}
	if logObj["delay"] != "2s" {
		t.Errorf("Expected field 'delay'='2s', got: %v", logObj["delay"])
	}
	if logObj["error"] != "boom" {
		t.Errorf("Expected field 'error'='boom', got: %v", logObj["error"])
	}
	if _, ok := logObj["timestamp"]; !ok {
		t.Error("Expected 'timestamp' field in log output")
	}
}

func TestScalyrEncoder_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newScalyrLogger(&buf).With(zap.String("component", "hub"))

	logger.Info("first")
	logger.With(zap.String("run_id", "r1")).Info("second")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("Expected 2 log lines, got %d", len(lines))
	}

	var first, second map[string]interface{}
	if err := json.Unmarshal(lines[0], &first); err != nil {
		t.Fatalf("Failed to parse JSON: %v", err)
	}
	if err := json.Unmarshal(lines[1], &second); err != nil {
		t.Fatalf("Failed to parse JSON: %v", err)
	}

	if first["component"] != "hub" {
		t.Errorf("Expected component on first line, got: %v", first["component"])
	}
	if _, ok := first["run_id"]; ok {
		t.Error("Child logger fields leaked into parent")
	}
	if second["component"] != "hub" || second["run_id"] != "r1" {
		t.Errorf("Expected both context fields on second line, got: %v", second)
	}
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name  string
		cfg   config.LoggingConfig
		debug bool
	}{
		{"text debug", config.LoggingConfig{Level: "DEBUG", Format: "text"}, true},
		{"json info", config.LoggingConfig{Level: "INFO", Format: "json"}, false},
		{"scalyr", config.LoggingConfig{Level: "debug", Format: "json", ScalyrFormat: true}, true},
		{"text ignores scalyr", config.LoggingConfig{Level: "WARN", Format: "text", ScalyrFormat: true}, false},
		{"unknown level", config.LoggingConfig{Level: "chatty", Format: "json"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := InitLogger(&tt.cfg); err != nil {
				t.Fatalf("InitLogger() error = %v", err)
			}
			if GetLogger() != Logger {
				t.Fatal("GetLogger() should return the initialized logger")
			}
			if got := Logger.Core().Enabled(zapcore.DebugLevel); got != tt.debug {
				t.Errorf("debug enabled = %v, want %v", got, tt.debug)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"DEBUG", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"ERROR", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) should return a usable logger")
	}
	OrNop(nil).Info("dropped")

	logger := zap.NewExample()
	if OrNop(logger) != logger {
		t.Error("OrNop should return a non-nil logger unchanged")
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	Logger = newScalyrLogger(&buf)
	t.Cleanup(func() { Logger = nil })

	WithComponent("render").Info("wrote document")

	var logObj map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logObj); err != nil {
		t.Fatalf("Failed to parse JSON: %v", err)
	}
	if logObj["component"] != "render" {
		t.Errorf("Expected component 'render', got: %v", logObj["component"])
	}
}
