package processor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/airbusgeo/ardcube/service"
	"github.com/airbusgeo/ardcube/service/log"
	"go.uber.org/zap/zapcore"
)

// LogFilter filters the outputs of a containerized tool and keeps the last error
type LogFilter interface {
	log.Filter
	// WrapError wraps the error with additionnal information from the logs
	WrapError(err error) error
}

// PythonLogFilter formats log from python scripts (pyroSAR)
type PythonLogFilter struct {
	lastError string
}

// ForceLogFilter formats log from the FORCE tools
type ForceLogFilter struct {
	lastError string
}

var temporaryErrs = []string{
	"temporary failure",
	"timed out",
}

// WrapError implements LogFilter
func (f *PythonLogFilter) WrapError(err error) error {
	if f.lastError == "" || err == nil {
		return err
	}
	err = service.MergeErrors(true, err, errors.New(strings.TrimSpace(f.lastError)))
	strerr := strings.ToLower(err.Error())
	for _, tmpErr := range temporaryErrs {
		if strings.Contains(strerr, tmpErr) {
			return service.MakeTemporary(err)
		}
	}
	return err
}

// Filter implements log.Filter
func (f *PythonLogFilter) Filter(msg string, defaultLevel zapcore.Level) (string, zapcore.Level, bool) {
	msg = strings.TrimSuffix(msg, "\n")
	trimmedmsg := strings.TrimSpace(msg)
	switch {
	case trimmedmsg == "":
		return msg, defaultLevel, true
	case strings.HasPrefix(trimmedmsg, "Traceback"):
		f.lastError = ""
		return msg, zapcore.ErrorLevel, false
	case strings.HasPrefix(trimmedmsg, "FATAL:"), strings.HasPrefix(trimmedmsg, "ERROR:"),
		strings.HasSuffix(strings.SplitN(trimmedmsg, ":", 2)[0], "Error"):
		f.lastError = msg
		return msg, zapcore.ErrorLevel, false
	case strings.HasPrefix(trimmedmsg, "WARNING:"):
		return msg, zapcore.WarnLevel, false
	}
	return msg, defaultLevel, false
}

// WrapError implements LogFilter
func (f *ForceLogFilter) WrapError(err error) error {
	if f.lastError != "" && err != nil {
		return fmt.Errorf("%w (%v)", err, f.lastError)
	}
	return err
}

// Filter implements log.Filter
func (f *ForceLogFilter) Filter(msg string, defaultLevel zapcore.Level) (string, zapcore.Level, bool) {
	msg = strings.TrimSuffix(msg, "\n")
	trimmedmsg := strings.TrimSpace(msg)
	lower := strings.ToLower(trimmedmsg)
	switch {
	case trimmedmsg == "":
		return msg, defaultLevel, true
	case strings.HasPrefix(lower, "error"), strings.Contains(lower, " failed"):
		f.lastError = msg
		return msg, zapcore.ErrorLevel, false
	case strings.HasPrefix(lower, "warning"):
		return msg, zapcore.WarnLevel, false
	case strings.HasSuffix(trimmedmsg, "%"):
		// progress bars
		return msg, zapcore.DebugLevel, false
	}
	return msg, defaultLevel, false
}
