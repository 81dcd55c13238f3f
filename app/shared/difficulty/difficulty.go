// Package difficulty maps continuous difficulty values in [0, 10) onto the
// named grades and primary tiers used across the bot.
package difficulty

import (
	"fmt"
	"math"
	"strings"

	"github.com/Black-And-White-Club/parkour-bot/app/shared/apperr"
)

const (
	// MinValue is the inclusive lower bound of the scale.
	MinValue = 0.0
	// MaxValue is the exclusive upper bound of the scale.
	MaxValue = 10.0
	// Epsilon nudges values sitting just under a boundary into the upper grade.
	Epsilon = 0.01
)

// ErrValueOutOfRange is returned for NaN and values outside [0, 10).
var ErrValueOutOfRange = apperr.Validation("difficulty", "difficulty value must be between 0 and 10")

// Tier is one of the seven primary difficulty tiers.
type Tier int

const (
	Beginner Tier = iota
	Easy
	Medium
	Hard
	VeryHard
	Extreme
	Hell
)

// TierCount is the number of primary tiers.
const TierCount = 7

var tierNames = [TierCount]string{"Beginner", "Easy", "Medium", "Hard", "Very Hard", "Extreme", "Hell"}

func (t Tier) String() string {
	if !t.Valid() {
		return "Unknown"
	}
	return tierNames[t]
}

// Valid reports whether t is one of the seven tiers.
func (t Tier) Valid() bool { return t >= Beginner && t <= Hell }

// Index is the tier's position in the ordering, Beginner being 0.
func (t Tier) Index() int { return int(t) }

// Tiers returns every tier in ascending order.
func Tiers() []Tier {
	return []Tier{Beginner, Easy, Medium, Hard, VeryHard, Extreme, Hell}
}

// ParseTier resolves a tier name, ignoring case and surrounding space.
func ParseTier(name string) (Tier, error) {
	n := normalize(name)
	for i, tn := range tierNames {
		if strings.EqualFold(n, tn) {
			return Tier(i), nil
		}
	}
	return 0, apperr.Validationf("ParseTier", "unknown difficulty tier %q", name)
}

// Grade is one of the 17 sub-graded buckets, indexed in ascending order.
type Grade int

type gradeSpec struct {
	name string
	tier Tier
	low  float64
	high float64
}

var grades = [...]gradeSpec{
	{"Beginner", Beginner, 0.00, 0.59},
	{"Easy -", Easy, 0.59, 1.18},
	{"Easy", Easy, 1.18, 1.76},
	{"Easy +", Easy, 1.76, 2.35},
	{"Medium -", Medium, 2.35, 2.94},
	{"Medium", Medium, 2.94, 3.53},
	{"Medium +", Medium, 3.53, 4.12},
	{"Hard -", Hard, 4.12, 4.71},
	{"Hard", Hard, 4.71, 5.29},
	{"Hard +", Hard, 5.29, 5.88},
	{"Very Hard -", VeryHard, 5.88, 6.47},
	{"Very Hard", VeryHard, 6.47, 7.06},
	{"Very Hard +", VeryHard, 7.06, 7.65},
	{"Extreme -", Extreme, 7.65, 8.24},
	{"Extreme", Extreme, 8.24, 8.82},
	{"Extreme +", Extreme, 8.82, 9.41},
	{"Hell", Hell, 9.41, 10.00},
}

// GradeCount is the number of grades.
const GradeCount = len(grades)

// HellGrade is the top grade, used as the fallback when no interval matches.
const HellGrade = Grade(GradeCount - 1)

// Grades returns every grade in ascending order.
func Grades() []Grade {
	out := make([]Grade, GradeCount)
	for i := range out {
		out[i] = Grade(i)
	}
	return out
}

// Valid reports whether g indexes a known grade.
func (g Grade) Valid() bool { return g >= 0 && int(g) < GradeCount }

func (g Grade) String() string {
	if !g.Valid() {
		return "Unknown"
	}
	return grades[g].name
}

// Tier collapses the grade to its primary tier.
func (g Grade) Tier() Tier { return grades[g].tier }

// Range returns the grade's half-open interval [low, high).
func (g Grade) Range() (low, high float64) {
	s := grades[g]
	return s.low, s.high
}

// Midpoint is the representative value of the grade.
func (g Grade) Midpoint() float64 {
	low, high := g.Range()
	return math.Round((low+high)/2*100) / 100
}

// Contains reports whether v falls inside the grade's interval.
func (g Grade) Contains(v float64) bool {
	low, high := g.Range()
	return v >= low && v < high
}

// ParseGrade resolves a grade name. "Hard+", "hard +" and "Hard +" are equivalent.
func ParseGrade(name string) (Grade, error) {
	n := normalize(name)
	for i, s := range grades {
		if strings.EqualFold(n, s.name) {
			return Grade(i), nil
		}
	}
	return 0, apperr.Validationf("ParseGrade", "unknown difficulty grade %q", name)
}

// RangeForGrade returns the interval for a grade name.
func RangeForGrade(name string) (low, high float64, err error) {
	g, err := ParseGrade(name)
	if err != nil {
		return 0, 0, err
	}
	low, high = g.Range()
	return low, high, nil
}

// CollapseSubgrades strips the "-"/"+" modifier from a grade name.
func CollapseSubgrades(name string) (Tier, error) {
	g, err := ParseGrade(name)
	if err != nil {
		return 0, err
	}
	return g.Tier(), nil
}

// ValidateValue rejects NaN and values outside [0, 10).
func ValidateValue(v float64) error {
	if math.IsNaN(v) || v < MinValue || v >= MaxValue {
		return fmt.Errorf("%w (got %.2f)", ErrValueOutOfRange, v)
	}
	return nil
}

// GradeForValue returns the grade containing v+Epsilon. Out-of-range input is
// a validation error; an in-range value pushed past the top by Epsilon
// resolves to Hell.
func GradeForValue(v float64) (Grade, error) {
	if err := ValidateValue(v); err != nil {
		return 0, err
	}
	shifted := v + Epsilon
	for i, s := range grades {
		if shifted >= s.low && shifted < s.high {
			return Grade(i), nil
		}
	}
	return HellGrade, nil
}

// TierForValue is GradeForValue collapsed to the primary tier.
func TierForValue(v float64) (Tier, error) {
	g, err := GradeForValue(v)
	if err != nil {
		return 0, err
	}
	return g.Tier(), nil
}

// TierRange returns the union of the tier's grade intervals.
func TierRange(t Tier) (low, high float64) {
	low, high = math.Inf(1), math.Inf(-1)
	for _, s := range grades {
		if s.tier != t {
			continue
		}
		low = math.Min(low, s.low)
		high = math.Max(high, s.high)
	}
	return low, high
}

func normalize(name string) string {
	n := strings.Join(strings.Fields(name), " ")
	for _, mod := range []string{"-", "+"} {
		if strings.HasSuffix(n, mod) && !strings.HasSuffix(n, " "+mod) {
			n = strings.TrimSuffix(n, mod) + " " + mod
		}
	}
	return n
}
