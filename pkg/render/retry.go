package render

import (
	"context"
	"errors"
	"io"
	"net"
	"time"
)

// retry runs fn up to attempts times, doubling delay after each failure.
// Only transient errors are retried; others return immediately. Returns the
// last error if every attempt fails, or ctx.Err() if cancelled while waiting.
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !transient(err) {
			return err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}

// transient reports whether err is a network failure that may clear up,
// such as a dropped connection or a timeout.
func transient(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
