package tier

import "time"

// Refresh tiers order items by how often their sentiment is re-queried.
const (
	Biweekly   = 1
	Monthly    = 2
	Quarterly  = 3
	Semiannual = 4
	Never      = 5
)

// Policy thresholds. Tunable product constants, not invariants.
const (
	freshAgeMonths   = 6
	recentAgeMonths  = 24
	settledAgeMonths = 60
	frozenVoteCount  = 10_000
)

// Cadence windows per tier. Tier Never has no window and is excluded from
// selection entirely.
var cadences = map[int]time.Duration{
	Biweekly:   14 * 24 * time.Hour,
	Monthly:    30 * 24 * time.Hour,
	Quarterly:  91 * 24 * time.Hour,
	Semiannual: 182 * 24 * time.Hour,
}

// Cadence returns the refresh window for a tier, or 0 for tier Never and
// unknown tiers.
func Cadence(t int) time.Duration {
	return cadences[t]
}

// Classify maps an item's age and vote count to a refresh tier. Boundary
// ages (exactly 6, 24, 60 months) fall into the more frequent tier.
func Classify(ageMonths int, voteCount int64) int {
	switch {
	case ageMonths > settledAgeMonths && voteCount > frozenVoteCount:
		return Never
	case ageMonths <= freshAgeMonths:
		return Biweekly
	case ageMonths <= recentAgeMonths:
		return Monthly
	case ageMonths <= settledAgeMonths:
		return Quarterly
	default:
		return Semiannual
	}
}

// ClassifyItem classifies from a release date. An absent date is treated as
// maximally stale without qualifying for tier Never, so undated items land
// in the semiannual tier regardless of vote count.
func ClassifyItem(releaseDate *time.Time, voteCount int64, now time.Time) int {
	if releaseDate == nil {
		return Semiannual
	}
	return Classify(AgeMonths(*releaseDate, now), voteCount)
}

// AgeMonths counts whole calendar months elapsed between release and now.
// Future dates count as age zero.
func AgeMonths(release, now time.Time) int {
	if release.After(now) {
		return 0
	}
	months := (now.Year()-release.Year())*12 + int(now.Month()) - int(release.Month())
	if now.Day() < release.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
