package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/kozaktomas/face-signin/internal/config"
	"github.com/sirupsen/logrus"
)

func TestNewWithOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithOutput(config.LogConfig{Level: "debug", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("NewWithOutput() error: %v", err)
	}

	logger.WithFields(logrus.Fields{"client_id": "c1"}).Debug("sign-in granted")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["client_id"] != "c1" {
		t.Errorf("expected client_id field 'c1', got %v", entry["client_id"])
	}
	if entry["msg"] != "sign-in granted" {
		t.Errorf("expected msg 'sign-in granted', got %v", entry["msg"])
	}
}

func TestNewWithOutput_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithOutput(config.LogConfig{Level: "warn", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("NewWithOutput() error: %v", err)
	}

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered at warn level, got %q", buf.String())
	}
}

func TestNewWithOutput_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LogConfig
	}{
		{"bad level", config.LogConfig{Level: "loud", Format: "text"}},
		{"bad format", config.LogConfig{Level: "info", Format: "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewWithOutput(tt.cfg, &bytes.Buffer{}); err == nil {
				t.Error("expected error")
			}
		})
	}
}
