// Package events declares every topic the bot publishes or consumes and the
// payload carried on each.
package events

// Stream names own the subjects below them ("playtest" owns "playtest.>").
const (
	StreamPlaytest = "playtest"
	StreamRecord   = "record"
	StreamMap      = "map"
	StreamRank     = "rank"
	StreamUser     = "user"
)

// Streams lists every stream the bus provisions.
var Streams = []string{StreamPlaytest, StreamRecord, StreamMap, StreamRank, StreamUser}

// Playtest topics.
const (
	PlaytestSessionOpenRequestedV1 = "playtest.session.open.requested.v1"
	PlaytestSessionOpenedV1        = "playtest.session.opened.v1"
	PlaytestSessionOpenRejectedV1  = "playtest.session.open.rejected.v1"
	PlaytestVoteCastRequestedV1    = "playtest.vote.cast.requested.v1"
	PlaytestVoteRecordedV1         = "playtest.vote.recorded.v1"
	PlaytestVoteRejectedV1         = "playtest.vote.rejected.v1"
	PlaytestFinalizedV1            = "playtest.finalized.v1"
)

// Record topics. Completion rows are written by the verification workflow
// before this event is published.
const (
	RecordCompletionVerifiedV1 = "record.completion.verified.v1"
)

// Map topics.
const (
	MapDifficultyEditRequestedV1 = "map.difficulty.edit.requested.v1"
	MapArchiveRequestedV1        = "map.archive.requested.v1"
	MapUpdatedV1                 = "map.updated.v1"
	MapUpdateRejectedV1          = "map.update.rejected.v1"
)

// Rank topics.
const (
	RankReconcileRequestedV1 = "rank.reconcile.requested.v1"
	RankReconciledV1         = "rank.reconciled.v1"
)

// User topics.
const (
	UserNotificationUpdateRequestedV1 = "user.notification.update.requested.v1"
	UserNotificationUpdatedV1         = "user.notification.updated.v1"
)
