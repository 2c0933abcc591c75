package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"casino/internal/config"

	"github.com/sirupsen/logrus"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := newTo(&buf, &config.LogConfig{Level: "debug", Format: "json"})
	if err != nil {
		t.Fatal(err)
	}
	l.WithField("user_id", 7).Info("settled")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("not json: %q", buf.String())
	}
	if entry["msg"] != "settled" || entry["user_id"] != float64(7) {
		t.Fatalf("entry = %v", entry)
	}
	if l.GetLevel() != logrus.DebugLevel {
		t.Fatalf("level = %s", l.GetLevel())
	}
}

func TestNew_Rejects(t *testing.T) {
	if _, err := New(&config.LogConfig{Level: "loud"}); err == nil {
		t.Error("bad level accepted")
	}
	if _, err := New(&config.LogConfig{Level: "info", Format: "xml"}); err == nil {
		t.Error("bad format accepted")
	}
}
