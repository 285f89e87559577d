package log

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestConfigureLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, LevelWarn)
	oldStd := std
	std = l
	defer func() { std = oldStd }()

	Debug("should be filtered", Pairs{})
	if buf.Len() != 0 {
		t.Fatalf("debug log should have been filtered at warn level, got %q", buf.String())
	}

	Warn("should appear", Pairs{"k": "v"})
	if !strings.Contains(buf.String(), "should appear") {
		t.Fatalf("expected warn message in output, got %q", buf.String())
	}
}

func TestWarnOnceLogsOnlyFirstOccurrence(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, LevelTrace)
	oldStd := std
	std = l
	defer func() { std = oldStd }()

	WarnOnce("dup-key", "first", Pairs{})
	WarnOnce("dup-key", "second", Pairs{})

	out := buf.String()
	if strings.Count(out, "msg=") != 1 {
		t.Fatalf("expected exactly one logged line, got %q", out)
	}
}

func TestWarnOnceEveryRespectsWindow(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, LevelTrace)
	oldStd := std
	std = l
	defer func() { std = oldStd }()

	WarnOnceEvery("rate-key", "event", Pairs{}, time.Hour)
	WarnOnceEvery("rate-key", "event", Pairs{}, time.Hour)

	if strings.Count(buf.String(), "msg=") != 1 {
		t.Fatalf("second call within the window should have been suppressed, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("warn") != LevelWarn {
		t.Fatal("expected warn to parse to LevelWarn")
	}
	if ParseLevel("bogus") != LevelInfo {
		t.Fatal("expected an unrecognized level to default to LevelInfo")
	}
}
