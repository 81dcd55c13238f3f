// Package notification defines the closed set of notices the bot sends and
// the sink that delivers them.
package notification

import (
	"context"
	"fmt"
)

// Kind selects the notice type and the opt-out flag that governs it.
type Kind int

const (
	KindNewMap Kind = iota + 1
	KindMapApproved
	KindMapRejected
	KindPromotion
	KindDemotion
	KindVerification
)

var kindNames = map[Kind]string{
	KindNewMap:       "new_map",
	KindMapApproved:  "map_approved",
	KindMapRejected:  "map_rejected",
	KindPromotion:    "promotion",
	KindDemotion:     "demotion",
	KindVerification: "verification",
}

// Kinds returns every kind in declaration order.
func Kinds() []Kind {
	return []Kind{KindNewMap, KindMapApproved, KindMapRejected, KindPromotion, KindDemotion, KindVerification}
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// Flag is the bit stored in a user's opt-out mask for this kind.
func (k Kind) Flag() int64 { return 1 << uint(k) }

// ParseKind resolves a kind by its String form.
func ParseKind(s string) (Kind, error) {
	for k, n := range kindNames {
		if n == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown notification kind %q", s)
}

// Sink delivers notices. Whether a recipient opted out is the sink's concern.
type Sink interface {
	NotifyUser(ctx context.Context, userID string, kind Kind, message string) error
	NotifyChannel(ctx context.Context, channelID string, kind Kind, message string) error
}
