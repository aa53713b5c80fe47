package authapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goPortal/internal/limiters"
)

// ResendCooldown is the default wait between two OTP sends to one email.
const ResendCooldown = 60 * time.Second

// ErrCooldown matches every *CooldownError. Cooldown implementations
// return it from Acquire while a window is open.
var ErrCooldown = limiters.ErrCooldown

// Cooldown limits how often an OTP can be sent to one email.
type Cooldown interface {
	Acquire(ctx context.Context, key string) (time.Duration, error)
	Release(ctx context.Context, key string) error
}

// CooldownError reports an OTP send attempted too soon.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	secs := int((e.Remaining + time.Second - 1) / time.Second)
	return fmt.Sprintf("Please wait %ds before requesting another code", secs)
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldown
}

// withCooldown runs send unless email is cooling down. A failed send
// reopens the window.
func (c *Client) withCooldown(ctx context.Context, email string, send func() (string, error)) (string, error) {
	key := "otp:" + strings.ToLower(strings.TrimSpace(email))
	left, err := c.cooldown.Acquire(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCooldown) {
			return "", &CooldownError{Remaining: left}
		}
		// A broken cooldown store must not block password recovery.
		c.logger.Warn().Err(err).Msg("cooldown unavailable")
	}

	msg, err := send()
	if err != nil {
		if rerr := c.cooldown.Release(ctx, key); rerr != nil {
			c.logger.Warn().Err(rerr).Msg("cooldown release failed")
		}
		return "", err
	}
	return msg, nil
}
