package service

import (
	"context"
	"errors"
	"fmt"
	neturl "net/url"
	"syscall"
	"time"

	"google.golang.org/api/googleapi"
)

type errTmpIf interface{ Temporary() bool }
type errTmp struct{ error }

func (t errTmp) Temporary() bool    { return true }
func (t *errTmp) Unwrap() error     { return t.error }
func MakeTemporary(err error) error { return &errTmp{err} }

type errFatalIf interface{ Fatal() bool }
type errFatal struct{ error }

func (t errFatal) Fatal() bool    { return true }
func (t *errFatal) Unwrap() error { return t.error }
func MakeFatal(err error) error   { return &errFatal{err} }

// Temporary inspects the error trace and returns whether the error is transient
func Temporary(err error) bool {
	var uerr *neturl.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}

	//First override some default syscall temporary statuses
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EIO, syscall.EBUSY, syscall.ECANCELED, syscall.ECONNABORTED, syscall.ECONNRESET, syscall.ENOMEM, syscall.EPIPE:
			return true
		}
	}

	//first check explicitely marked error
	var tmp errTmpIf
	if errors.As(err, &tmp) {
		return tmp.Temporary()
	}
	var gapiError *googleapi.Error
	if errors.As(err, &gapiError) {
		return gapiError.Code == 429 || gapiError.Code == 500
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// Fatal inspects the error and returns whether it's a fatal error
func Fatal(err error) bool {
	var tmp errFatalIf
	if errors.As(err, &tmp) {
		return tmp.Fatal()
	}
	return false
}

// Retriable calls fn until it succeeds, returns a fatal error or fails nbTries times.
// It waits delay between two calls.
func Retriable(ctx context.Context, fn func() error, delay time.Duration, nbTries int) error {
	var err error
	for i := 0; i < nbTries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return MergeErrors(true, err, ctx.Err())
			case <-time.After(delay):
			}
		}
		if err = fn(); err == nil || Fatal(err) {
			return err
		}
	}
	return err
}

// MergeErrors, appending texts
// if priorityToErr is true, priority to the fatal error then to the temporary
// else, priority to no error, then to the temporary and finally to the fatal error.
func MergeErrors(priorityToError bool, err error, newErrs ...error) error {
	if len(newErrs) == 0 {
		return err
	}
	newErr := newErrs[0]

	if newErr == nil {
		if !priorityToError {
			return nil
		}
	} else if err == nil {
		err = newErr
	} else if priorityToError != Temporary(err) {
		err = fmt.Errorf("%w\n %v", err, newErr)
	} else {
		err = fmt.Errorf("%w\n %v", newErr, err)
	}
	return MergeErrors(priorityToError, err, newErrs[1:]...)
}

// Configuration errors. They abort the current pipeline stage and are wrapped with
// the offending path or value.
var (
	ErrInvalidGeometry       = errors.New("invalid geometry")
	ErrUnsupportedFormat     = errors.New("unsupported format")
	ErrSchemaMismatch        = errors.New("schema mismatch")
	ErrBandCountMismatch     = errors.New("band count mismatch")
	ErrUnrecognizedFilename  = errors.New("unrecognized filename")
	ErrUnrecognizedOrbitCode = errors.New("unrecognized orbit code")
	ErrMissingSchema         = errors.New("missing product schema")
	ErrMissingSetting        = errors.New("missing setting")
	ErrInvalidParameterFile  = errors.New("invalid parameter file")
	ErrSameDirectory         = errors.New("destination is the source directory")
)

// ErrCancelled is returned when the user declines an operation
var ErrCancelled = errors.New("cancelled by user")

// ConfigError wraps one of the configuration errors with the path or value that raised it.
// The result is fatal.
func ConfigError(kind error, subject string, args ...interface{}) error {
	if len(args) > 0 {
		return MakeFatal(fmt.Errorf("%w: %s (%s)", kind, subject, fmt.Sprint(args...)))
	}
	return MakeFatal(fmt.Errorf("%w: %s", kind, subject))
}
