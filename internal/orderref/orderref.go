// Package orderref derives order references from the wall clock.
//
// A reference is the Unix time in milliseconds divided by the window size
// (100 seconds by default), printed in base 10. Two references are equal
// exactly when the times fall into the same window, so a reference is only
// unique per window, not per order.
package orderref

import (
    "fmt"
    "strconv"
    "time"
)

// DefaultWindow is the truncation unit used by New.
const DefaultWindow = 100 * time.Second

// clamp keeps a window at one millisecond or more.
func clamp(w time.Duration) time.Duration {
    if w < time.Millisecond {
        return time.Millisecond
    }
    return w
}

// New returns the order reference for t under DefaultWindow.
func New(t time.Time) string {
    return NewWithWindow(t, DefaultWindow)
}

// NewWithWindow returns the order reference for t under window w
// (minimum one millisecond).
func NewWithWindow(t time.Time, w time.Duration) string {
    return strconv.FormatInt(t.UnixMilli()/clamp(w).Milliseconds(), 10)
}

// SameWindow reports whether a and b produce the same reference under w.
func SameWindow(a, b time.Time, w time.Duration) bool {
    return NewWithWindow(a, w) == NewWithWindow(b, w)
}

// Start parses a reference made under window w back into the first instant
// of its window (UTC).
func Start(ref string, w time.Duration) (time.Time, error) {
    if err := Validate(ref); err != nil {
        return time.Time{}, err
    }
    n, err := strconv.ParseInt(ref, 10, 64)
    if err != nil {
        return time.Time{}, fmt.Errorf("parse order reference: %w", err)
    }
    return time.UnixMilli(n * clamp(w).Milliseconds()).UTC(), nil
}

// Validate checks that ref is a non-empty string of digits.
func Validate(ref string) error {
    if ref == "" {
        return fmt.Errorf("order reference is empty")
    }
    for i := 0; i < len(ref); i++ {
        if ref[i] < '0' || ref[i] > '9' {
            return fmt.Errorf("order reference must be digits")
        }
    }
    return nil
}
