package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	type spec struct {
		in     string
		exp    Level
		expErr bool
	}
	specs := []spec{
		{"debug", Debug, false},
		{"INFO", Info, false},
		{" notice ", Notice, false},
		{"warn", Warning, false},
		{"warning", Warning, false},
		{"error", Error, false},
		{"chatty", Notice, true},
	}

	for index, s := range specs {
		level, err := ParseLevel(s.in)
		if s.expErr {
			if err == nil {
				t.Fatalf("[spec %d] expected an error for %q", index, s.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("[spec %d] unexpected error: %v", index, err)
		}
		if level != s.exp {
			t.Fatalf("[spec %d] expected level %s; got %s", index, s.exp, level)
		}
	}
}

func TestSinkAndLevel(t *testing.T) {
	var buf bytes.Buffer
	SetSink(&buf)
	defer SetSink(os.Stdout)

	SetLevel(Warning)
	defer SetLevel(Notice)

	logger := New("logtest")
	logger.Notice("hidden")
	logger.Warning("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected notice message to be filtered; got %q", out)
	}
	if !strings.Contains(out, "visible") || !strings.Contains(out, "[logtest]") {
		t.Fatalf("expected warning message with module name; got %q", out)
	}
}
