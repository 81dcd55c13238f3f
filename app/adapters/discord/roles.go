package discordadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

// MemberAPI is the part of *discordgo.Session the role sink needs.
type MemberAPI interface {
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMemberEdit(guildID, userID string, data *discordgo.GuildMemberParams, options ...discordgo.RequestOption) (*discordgo.Member, error)
}

// RoleSink reads and replaces guild member roles.
type RoleSink struct {
	api      MemberAPI
	guildID  string
	throttle throttle
}

// NewRoleSink creates a RoleSink for one guild.
func NewRoleSink(api MemberAPI, guildID string, perSecond float64, timeout time.Duration) *RoleSink {
	return &RoleSink{api: api, guildID: guildID, throttle: newThrottle(perSecond, timeout)}
}

// CurrentRoles returns the member's role IDs.
func (s *RoleSink) CurrentRoles(ctx context.Context, userID string) ([]string, error) {
	var roles []string
	err := s.throttle.do(ctx, func(ctx context.Context) error {
		m, err := s.api.GuildMember(s.guildID, userID, discordgo.WithContext(ctx))
		if err != nil {
			if isUnknownMember(err) {
				return fmt.Errorf("%w: %s", ErrUnknownMember, userID)
			}
			return fmt.Errorf("failed to fetch member %s: %w", userID, err)
		}
		roles = append([]string(nil), m.Roles...)
		return nil
	})
	return roles, err
}

// ReplaceRoles sets the member's whole role list in one edit.
func (s *RoleSink) ReplaceRoles(ctx context.Context, userID string, roles []string) error {
	return s.throttle.do(ctx, func(ctx context.Context) error {
		list := append([]string{}, roles...)
		if _, err := s.api.GuildMemberEdit(s.guildID, userID, &discordgo.GuildMemberParams{Roles: &list}, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("failed to edit roles for %s: %w", userID, err)
		}
		return nil
	})
}
