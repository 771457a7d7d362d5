package log

import (
	"context"
	"os/exec"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type upperFilter struct{}

func (upperFilter) Filter(msg string, lvl zapcore.Level) (string, zapcore.Level, bool) {
	if msg == "" {
		return msg, lvl, true
	}
	if strings.HasPrefix(msg, "ERROR") {
		return msg, zapcore.ErrorLevel, false
	}
	return strings.ToUpper(msg), lvl, false
}

func observed() (context.Context, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return context.WithValue(context.Background(), loggerKey{}, zap.New(core)), logs
}

func TestLineWriter(t *testing.T) {
	ctx, logs := observed()
	w := NewLineWriter(ctx, zapcore.InfoLevel, upperFilter{})
	w.Write([]byte("first li"))
	w.Write([]byte("ne\n\nERROR: failed\nlast"))
	if logs.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", logs.Len())
	}
	w.Flush()

	entries := logs.AllUntimed()
	expected := []struct {
		msg string
		lvl zapcore.Level
	}{{"FIRST LINE", zapcore.InfoLevel}, {"ERROR: failed", zapcore.ErrorLevel}, {"LAST", zapcore.InfoLevel}}
	if len(entries) != len(expected) {
		t.Fatalf("expected %d entries, got %d", len(expected), len(entries))
	}
	for i, e := range expected {
		if entries[i].Message != e.msg || entries[i].Level != e.lvl {
			t.Errorf("%d: expected %s (%s), got %s (%s)", i, e.msg, e.lvl, entries[i].Message, entries[i].Level)
		}
	}
}

func TestLineWriterClip(t *testing.T) {
	ctx, logs := observed()
	w := NewLineWriter(ctx, zapcore.InfoLevel, nil)
	w.Write([]byte(strings.Repeat("a", MaxLineLength+10)))
	w.Write([]byte(strings.Repeat("b", 10) + "\nnext\n"))
	entries := logs.AllUntimed()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !strings.HasSuffix(entries[0].Message, "...[Message clipped]") || strings.Contains(entries[0].Message, "b") {
		t.Errorf("unexpected clipped line %q", entries[0].Message[MaxLineLength-5:])
	}
	if entries[1].Message != "next" {
		t.Errorf("expected next, got %s", entries[1].Message)
	}
}

func TestExec(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	ctx, logs := observed()
	err := Exec(ctx, exec.Command("sh", "-c", "echo out; echo err >&2"), StderrLevel(zapcore.ErrorLevel))
	if err != nil {
		t.Fatal(err)
	}
	levels := map[string]zapcore.Level{}
	for _, e := range logs.AllUntimed() {
		levels[e.Message] = e.Level
	}
	if levels["out"] != zapcore.InfoLevel || levels["err"] != zapcore.ErrorLevel || len(levels) != 2 {
		t.Errorf("unexpected logs %v", levels)
	}

	if err := Exec(ctx, exec.Command("sh", "-c", "exit 3")); err == nil {
		t.Errorf("expected an error")
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if err := Exec(cctx, exec.Command("sh", "-c", "exec sleep 5")); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
