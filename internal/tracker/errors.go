package tracker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

var (
	// ErrStoreUnavailable means the store could not be reached. The caller may
	// retry once connectivity returns.
	ErrStoreUnavailable = errors.New("chore store unavailable")

	// ErrStoreRejected means the store answered but refused the request.
	ErrStoreRejected = errors.New("chore store rejected request")

	// ErrInvalid is returned for input the tracker refuses before calling the store.
	ErrInvalid = errors.New("invalid input")
)

// NoticeKind distinguishes offline banners from failures that need attention.
type NoticeKind int

const (
	NoticeNone NoticeKind = iota
	NoticeOffline
	NoticeFailure
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeOffline:
		return "offline"
	case NoticeFailure:
		return "failure"
	default:
		return "none"
	}
}

// Notice is the user-visible error state left by the last failed store call.
type Notice struct {
	Kind    NoticeKind
	Message string
	At      time.Time
}

// Classify maps an error from the store boundary to the notice it warrants.
func Classify(err error) NoticeKind {
	switch {
	case err == nil:
		return NoticeNone
	case errors.Is(err, ErrStoreUnavailable):
		return NoticeOffline
	case errors.Is(err, ErrStoreRejected):
		return NoticeFailure
	case unreachable(err):
		return NoticeOffline
	default:
		return NoticeFailure
	}
}

// storeError wraps err with op and makes sure it carries exactly one of the
// store error classes.
func storeError(op string, err error) error {
	if errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrStoreRejected) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if unreachable(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreRejected, err)
}

func unreachable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
