// Package discordadapter implements the role sink and the notification sink
// on top of a discordgo session.
package discordadapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	rankservice "github.com/Black-And-White-Club/parkour-bot/app/modules/rank/application"
	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"
)

// ErrUnknownMember is returned when the user is not in the guild. The
// reconciler recognises it and skips the role call.
var ErrUnknownMember = rankservice.ErrMemberNotFound

// NewSession creates a bot session. The caller opens and closes it.
func NewSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, errors.New("discord token is required")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	return s, nil
}

// throttle shares one limiter and one per-request timeout across adapters.
type throttle struct {
	limiter *rate.Limiter
	timeout time.Duration
}

func newThrottle(perSecond float64, timeout time.Duration) throttle {
	if perSecond <= 0 {
		perSecond = 5
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return throttle{limiter: rate.NewLimiter(rate.Limit(perSecond), 1), timeout: timeout}
}

// do waits for a token, then runs call with a bounded context.
func (t throttle) do(ctx context.Context, call func(ctx context.Context) error) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return call(ctx)
}

func isUnknownMember(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		return restErr.Message.Code == discordgo.ErrCodeUnknownMember
	}
	return false
}
