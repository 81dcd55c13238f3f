package rankdomain

import (
	"fmt"
	"strings"

	"github.com/Black-And-White-Club/parkour-bot/app/shared/difficulty"
)

// Medal is the award attached to a completion, ordered worst to best.
type Medal int

const (
	MedalNone Medal = iota
	MedalBronze
	MedalSilver
	MedalGold
)

var medalNames = [...]string{"none", "bronze", "silver", "gold"}

func (m Medal) String() string {
	if m < MedalNone || m > MedalGold {
		return "unknown"
	}
	return medalNames[m]
}

// ParseMedal resolves a medal name; the empty string is MedalNone.
func ParseMedal(s string) (Medal, error) {
	if s == "" {
		return MedalNone, nil
	}
	for i, n := range medalNames {
		if strings.EqualFold(s, n) {
			return Medal(i), nil
		}
	}
	return MedalNone, fmt.Errorf("unknown medal %q", s)
}

// PlusMedals lists the medals that earn plus credits, in preference order.
var PlusMedals = []Medal{MedalGold, MedalSilver, MedalBronze}

// CompletionRecord is one verified-or-not completion joined with its map's state.
type CompletionRecord struct {
	UserID   string
	MapCode  string
	MapValue float64
	Verified bool
	Official bool
	Archived bool
	Medal    Medal
}

// Progression is a user's derived standing.
type Progression struct {
	RankCount  int `json:"rank_count"`
	GoldPlus   int `json:"gold_plus"`
	SilverPlus int `json:"silver_plus"`
	BronzePlus int `json:"bronze_plus"`
}

// Rank is the 1-based rank. Clearing no tiers is rank 1.
func (p Progression) Rank() int { return p.RankCount + 1 }

func (p Progression) RankName() string { return RankName(p.Rank()) }

// PlusCount returns the plus credits held for medal m.
func (p Progression) PlusCount(m Medal) int {
	switch m {
	case MedalGold:
		return p.GoldPlus
	case MedalSilver:
		return p.SilverPlus
	case MedalBronze:
		return p.BronzePlus
	default:
		return 0
	}
}

func (p *Progression) addPlus(m Medal) {
	switch m {
	case MedalGold:
		p.GoldPlus++
	case MedalSilver:
		p.SilverPlus++
	case MedalBronze:
		p.BronzePlus++
	}
}

// clearThresholds is indexed by tier; Beginner never counts.
var clearThresholds = [...]int{
	difficulty.Easy:     10,
	difficulty.Medium:   10,
	difficulty.Hard:     10,
	difficulty.VeryHard: 10,
	difficulty.Extreme:  7,
	difficulty.Hell:     3,
}

// ClearThreshold returns the completions needed to clear tier. Beginner returns 0.
func ClearThreshold(tier difficulty.Tier) int {
	if tier <= difficulty.Beginner || tier > difficulty.Hell {
		return 0
	}
	return clearThresholds[tier]
}

type tierCounts struct {
	completions int
	// medals[m] counts completions with a medal of m or better.
	medals [MedalGold + 1]int
}

// ComputeProgression derives a Progression from a user's full history.
// Only verified completions on official, non-archived maps count, once per
// map with the best medal recorded on it.
func ComputeProgression(records []CompletionRecord) Progression {
	best := make(map[string]CompletionRecord, len(records))
	for _, r := range records {
		if !r.Verified || !r.Official || r.Archived {
			continue
		}
		if cur, ok := best[r.MapCode]; !ok || r.Medal > cur.Medal {
			best[r.MapCode] = r
		}
	}

	var counts [difficulty.Hell + 1]tierCounts
	for _, r := range best {
		tier, err := difficulty.TierForValue(r.MapValue)
		if err != nil {
			continue
		}
		c := &counts[tier]
		c.completions++
		for m := MedalBronze; m <= r.Medal; m++ {
			c.medals[m]++
		}
	}

	var p Progression
	for tier := difficulty.Easy; tier <= difficulty.Hell; tier++ {
		threshold := ClearThreshold(tier)
		c := counts[tier]
		if c.completions < threshold {
			break
		}
		p.RankCount++

		for _, m := range PlusMedals {
			if p.PlusCount(m) != p.RankCount-1 {
				continue
			}
			if c.medals[m] >= threshold {
				p.addPlus(m)
				break
			}
		}
	}
	return p
}
