package transport

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/sbctool/sbctool/internal/errors"
)

// commandFailure turns a run outcome into the error Execute reports.
// ctx is the per-command context so a deadline reads as a timeout.
func commandFailure(ctx context.Context, command string, timeout time.Duration, err error) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.WrapWithCode(context.DeadlineExceeded, errors.ErrTransport,
			fmt.Sprintf("`%s` timed out after %s", command, timeout), "")
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var sErr *errors.Error
	if stderrors.As(err, &sErr) {
		return err
	}
	return errors.WrapWithCode(err, errors.ErrTransport,
		fmt.Sprintf("`%s` failed", command), "")
}

// exitFailure reports a command that ran but exited non-zero.
func exitFailure(command string, code int, stderr []byte) error {
	return errors.WrapWithCode(
		&errors.ExitError{Code: code, Stderr: strings.TrimSpace(string(stderr))},
		errors.ErrTransport,
		fmt.Sprintf("`%s` exited with status %d", command, code), "")
}

// withTimeout applies timeout, or fallback when timeout is not positive.
func withTimeout(ctx context.Context, timeout, fallback time.Duration) (context.Context, context.CancelFunc, time.Duration) {
	if timeout <= 0 {
		timeout = fallback
	}
	if timeout <= 0 {
		c, cancel := context.WithCancel(ctx)
		return c, cancel, 0
	}
	c, cancel := context.WithTimeout(ctx, timeout)
	return c, cancel, timeout
}
