package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrStorageUnavailable wraps storage-layer failures; no partial state is
	// left behind when it is returned.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrQuestionNotFound indicates the referenced question row does not exist.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrUserNotFound indicates no stats row exists for the user yet.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateResponse is the store's last line of defense against a second
	// response for the same (question, user) pair.
	ErrDuplicateResponse = errors.New("response already recorded for question and user")
	// ErrNoChannel indicates a guild has no resolvable channel for dispatch.
	ErrNoChannel = errors.New("no suitable channel for guild")
)

// CooldownError reports a publish attempt inside the per-channel cooldown.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("question cooldown active, retry in %s", e.Remaining.Round(100*time.Millisecond))
}

// AsCooldown unwraps err into a CooldownError if it is one.
func AsCooldown(err error) (*CooldownError, bool) {
	var ce *CooldownError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
