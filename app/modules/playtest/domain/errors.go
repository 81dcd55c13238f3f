package playtestdomain

import "github.com/Black-And-White-Club/parkour-bot/app/shared/apperr"

var (
	// ErrSelfVote rejects an author voting on their own map.
	ErrSelfVote = apperr.Permission("playtest", "you cannot vote on your own map")
	// ErrRankTooLow rejects a voter below the Hell gate.
	ErrRankTooLow = apperr.Permission("playtest", "your rank is too low to vote on Hell maps")
	// ErrTierNotAllowed rejects an author submitting above their allow-list.
	ErrTierNotAllowed = apperr.Permission("playtest", "your rank does not allow submitting maps of this difficulty")
	// ErrSessionClosed marks arrivals for a missing or terminal session.
	ErrSessionClosed = apperr.Conflict("playtest", "playtest is not open")
	// ErrFinalizeLost marks the caller that did not win the finalize claim.
	ErrFinalizeLost = apperr.Conflict("playtest", "playtest already finalizing")
	// ErrNoVotes means consensus was requested over an empty vote set.
	ErrNoVotes = apperr.Validation("playtest", "no votes recorded")
)
