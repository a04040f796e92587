package gqlstore

import (
	"errors"
	"fmt"
	"runtime/debug"

	perrors "github.com/jmgilman/go/errors"
)

// InvariantError reports a programming error: an unknown transaction, a write
// to a record that does not exist, a transition from the wrong state. These
// are raised as panics and never retried.
type InvariantError struct {
	Msg string
}

func invariantf(format string, args ...any) error {
	return &InvariantError{fmt.Sprintf(format, args...)}
}

func (e *InvariantError) Error() string {
	return "gqlstore: invariant violation: " + e.Msg
}

type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}

var errNoNetwork = errors.New("no network layer configured")

type panicked struct {
	reason any
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

// safelyCall runs a caller-supplied callback, turning a panic into an error
// so that it cannot leave the engine half-way through a transition.
func safelyCall(fn func()) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicked{p, string(debug.Stack())}
		}
	}()
	fn()
	return nil
}

func commitError(err error, tx PendingTransaction) error {
	if err == nil {
		return nil
	}
	return perrors.WrapWithContext(err, perrors.CodeNetwork, "mutation commit failed", map[string]interface{}{
		"call":             tx.CallName(),
		"clientMutationID": string(tx.ID()),
	})
}

func restoreError(err error, id DataID) error {
	return perrors.WrapWithContext(err, perrors.CodeDatabase, "cache restore failed", map[string]interface{}{
		"id": string(id),
	})
}

func decodeError(err error, enc Encoding) error {
	return perrors.Wrapf(err, perrors.CodeInvalidInput, "cannot deserialize %v store state", enc)
}
