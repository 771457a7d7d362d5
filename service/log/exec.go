package log

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap/zapcore"
)

// MaxLineLength is the length above which a line of a tool output is clipped
const MaxLineLength = 4096

// Filter receives a line and its default level, and returns the line to log with its level.
// If ignore is true, the line is dropped.
type Filter interface {
	Filter(msg string, defaultLevel zapcore.Level) (line string, level zapcore.Level, ignore bool)
}

// LineWriter is an io.Writer logging every line written to it with the logger of the context.
// Call Flush once the output is closed, to log the last unterminated line.
type LineWriter struct {
	ctx     context.Context
	level   zapcore.Level
	filter  Filter
	buf     bytes.Buffer
	clipped bool
}

// NewLineWriter creates a LineWriter logging at level. filter may be nil.
func NewLineWriter(ctx context.Context, level zapcore.Level, filter Filter) *LineWriter {
	return &LineWriter{ctx: ctx, level: level, filter: filter}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := w.buf.Next(i + 1)
		if w.clipped {
			w.clipped = false
			continue
		}
		w.log(string(line))
	}
	if w.buf.Len() > MaxLineLength {
		if !w.clipped {
			w.log(string(w.buf.Bytes()[:MaxLineLength]) + " ...[Message clipped]")
			w.clipped = true
		}
		w.buf.Reset()
	}
	return len(p), nil
}

// Flush logs the last line, if it does not end with a newline
func (w *LineWriter) Flush() {
	if w.buf.Len() > 0 && !w.clipped {
		w.log(w.buf.String())
	}
	w.buf.Reset()
	w.clipped = false
}

func (w *LineWriter) log(msg string) {
	msg = strings.TrimRight(msg, "\r\n")
	level := w.level
	if w.filter != nil {
		var ignore bool
		if msg, level, ignore = w.filter.Filter(msg, level); ignore {
			return
		}
	}
	if ce := Logger(w.ctx).Check(level, msg); ce != nil {
		ce.Write()
	}
}

type execOption struct {
	outl, errl zapcore.Level
	outf, errf Filter
}

// ExecOption is an option that can be passed to Exec()
type ExecOption func(eo *execOption)

// StdoutLevel sets the level at which stdout is logged (default: Info)
func StdoutLevel(l zapcore.Level) ExecOption {
	return func(eo *execOption) { eo.outl = l }
}

// StderrLevel sets the level at which stderr is logged (default: Warn)
func StderrLevel(l zapcore.Level) ExecOption {
	return func(eo *execOption) { eo.errl = l }
}

// StdoutFilter sets the filter of the stdout lines
func StdoutFilter(f Filter) ExecOption {
	return func(eo *execOption) { eo.outf = f }
}

// StderrFilter sets the filter of the stderr lines
func StderrFilter(f Filter) ExecOption {
	return func(eo *execOption) { eo.errf = f }
}

// Exec runs cmd, sending its stdout and stderr (if not already set) line by line to log.Logger(ctx).
// On ctx cancellation, the process is killed and ctx.Err() is returned.
func Exec(ctx context.Context, cmd *exec.Cmd, options ...ExecOption) error {
	opts := execOption{
		outl: zapcore.InfoLevel,
		errl: zapcore.WarnLevel,
	}
	for _, eo := range options {
		eo(&opts)
	}

	var writers []*LineWriter
	if cmd.Stdout == nil {
		w := NewLineWriter(ctx, opts.outl, opts.outf)
		cmd.Stdout = w
		writers = append(writers, w)
	}
	if cmd.Stderr == nil {
		w := NewLineWriter(ctx, opts.errl, opts.errf)
		cmd.Stderr = w
		writers = append(writers, w)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("cmd.start: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		if kerr := cmd.Process.Kill(); kerr != nil {
			Logger(ctx).Sugar().Warnf("kill: %v", kerr)
		}
		<-done
		err = ctx.Err()
	}
	for _, w := range writers {
		w.Flush()
	}
	return err
}
