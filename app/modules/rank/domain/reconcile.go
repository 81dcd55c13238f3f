package rankdomain

import (
	"fmt"
	"slices"
)

// RoleTable maps progression onto Discord role IDs. Rank holds one role per
// rank (Ninja first); each medal slice holds one role per plus credit.
type RoleTable struct {
	Rank   []string
	Gold   []string
	Silver []string
	Bronze []string
}

// Validate checks the table covers every reachable progression.
func (t RoleTable) Validate() error {
	if len(t.Rank) != MaxRank {
		return fmt.Errorf("rank roles: want %d, got %d", MaxRank, len(t.Rank))
	}
	for _, m := range PlusMedals {
		if n := len(t.medal(m)); n != MaxRank-1 {
			return fmt.Errorf("%s plus roles: want %d, got %d", m, MaxRank-1, n)
		}
	}
	return nil
}

func (t RoleTable) medal(m Medal) []string {
	switch m {
	case MedalGold:
		return t.Gold
	case MedalSilver:
		return t.Silver
	case MedalBronze:
		return t.Bronze
	default:
		return nil
	}
}

// Managed returns every role the reconciler owns.
func (t RoleTable) Managed() map[string]struct{} {
	out := make(map[string]struct{}, len(t.Rank)+len(t.Gold)+len(t.Silver)+len(t.Bronze))
	for _, set := range [][]string{t.Rank, t.Gold, t.Silver, t.Bronze} {
		for _, id := range set {
			out[id] = struct{}{}
		}
	}
	return out
}

// TargetRoles lists the roles p entitles a member to: rank roles 0..RankCount
// inclusive and, per medal, plus roles 0..count-1.
func (t RoleTable) TargetRoles(p Progression) []string {
	var out []string
	out = append(out, t.Rank[:min(p.RankCount+1, len(t.Rank))]...)
	for _, m := range PlusMedals {
		roles := t.medal(m)
		out = append(out, roles[:min(p.PlusCount(m), len(roles))]...)
	}
	return out
}

// Delta is the minimal role change for one member.
type Delta struct {
	ToAdd    []string
	ToRemove []string
}

// Empty reports whether no role call is needed.
func (d Delta) Empty() bool { return len(d.ToAdd) == 0 && len(d.ToRemove) == 0 }

// Apply returns current minus ToRemove plus ToAdd, keeping current's order.
func (d Delta) Apply(current []string) []string {
	out := make([]string, 0, len(current)+len(d.ToAdd))
	for _, id := range current {
		if !slices.Contains(d.ToRemove, id) {
			out = append(out, id)
		}
	}
	return append(out, d.ToAdd...)
}

// Diff computes the delta between the member's current roles and target.
// Roles outside managed are never removed.
func Diff(current, target []string, managed map[string]struct{}) Delta {
	have := make(map[string]struct{}, len(current))
	for _, id := range current {
		have[id] = struct{}{}
	}
	want := make(map[string]struct{}, len(target))
	for _, id := range target {
		want[id] = struct{}{}
	}

	var d Delta
	for _, id := range target {
		if _, ok := have[id]; !ok {
			d.ToAdd = append(d.ToAdd, id)
			have[id] = struct{}{}
		}
	}
	for _, id := range current {
		if _, ok := managed[id]; !ok {
			continue
		}
		if _, ok := want[id]; !ok && !slices.Contains(d.ToRemove, id) {
			d.ToRemove = append(d.ToRemove, id)
		}
	}
	return d
}
