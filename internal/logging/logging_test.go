package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestInitJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init("json", "debug", &buf)

	L("wire").Info("frame sealed", "callId", uint16(7))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON line, got %q: %v", buf.String(), err)
	}
	if entry[KeyComponent] != "wire" {
		t.Fatalf("component = %v, want wire", entry[KeyComponent])
	}
}

func TestInitTextFormatDefault(t *testing.T) {
	var buf bytes.Buffer
	Init("text", "info", &buf)

	L("mux").Warn("late reply dropped")

	if !strings.Contains(buf.String(), "late reply dropped") {
		t.Fatalf("expected message in output, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]bool{"debug": true, "DEBUG": true, "warn": true, "warning": true, "error": true, "bogus": true, "": true}
	for in := range cases {
		_ = parseLevel(in) // must not panic for any input
	}
}
