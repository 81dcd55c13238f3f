package discordadapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/parkour-bot/app/shared/notification"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability/attr"
	"github.com/bwmarrin/discordgo"
)

// MessageAPI is the part of *discordgo.Session the notifier needs.
type MessageAPI interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Preferences reports per-user notification opt-outs.
type Preferences interface {
	NotificationsEnabled(ctx context.Context, userID string, kind notification.Kind) (bool, error)
}

// Notifier delivers notices as Discord messages.
type Notifier struct {
	api      MessageAPI
	prefs    Preferences
	logger   *slog.Logger
	throttle throttle
}

// NewNotifier creates a Notifier.
func NewNotifier(api MessageAPI, prefs Preferences, logger *slog.Logger, perSecond float64, timeout time.Duration) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{api: api, prefs: prefs, logger: logger, throttle: newThrottle(perSecond, timeout)}
}

// NotifyUser DMs the user unless they opted out of kind.
func (n *Notifier) NotifyUser(ctx context.Context, userID string, kind notification.Kind, message string) error {
	if n.prefs != nil {
		enabled, err := n.prefs.NotificationsEnabled(ctx, userID, kind)
		if err != nil {
			return fmt.Errorf("failed to read notification settings: %w", err)
		}
		if !enabled {
			n.logger.DebugContext(ctx, "Notification suppressed by user setting",
				attr.UserID(userID),
				attr.String("kind", kind.String()),
			)
			return nil
		}
	}

	var channelID string
	err := n.throttle.do(ctx, func(ctx context.Context) error {
		ch, err := n.api.UserChannelCreate(userID, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("failed to open DM with %s: %w", userID, err)
		}
		channelID = ch.ID
		return nil
	})
	if err != nil {
		return err
	}
	return n.send(ctx, channelID, message)
}

// NotifyChannel posts to a channel. Channel posts ignore user settings.
func (n *Notifier) NotifyChannel(ctx context.Context, channelID string, kind notification.Kind, message string) error {
	return n.send(ctx, channelID, message)
}

func (n *Notifier) send(ctx context.Context, channelID, message string) error {
	return n.throttle.do(ctx, func(ctx context.Context) error {
		if _, err := n.api.ChannelMessageSend(channelID, message, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("failed to send message to %s: %w", channelID, err)
		}
		return nil
	})
}
