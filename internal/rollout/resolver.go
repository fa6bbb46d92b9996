// Package rollout computes which versions of a channel qualify at a rollout
// percentile and which single version is the latest. It is pure computation
// over the channel's version list; nothing here touches storage.
package rollout

import (
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/berthd/berth/internal/domain/release"
)

// Eligible returns the channel versions visible at rollout threshold r:
// every non-dead version whose rollout is at least r. With r=0 any non-dead
// version qualifies, which builds the unscoped default manifests.
func Eligible(versions []*release.Version, r int) []*release.Version {
	var out []*release.Version
	for _, v := range versions {
		if !v.Dead && v.Rollout >= r {
			out = append(out, v)
		}
	}

	return out
}

// Latest returns the version with the greatest semantic version name among
// the set, or nil for an empty set. Versions whose names fail to parse are
// ignored; names are unique within a channel so ties cannot occur.
func Latest(versions []*release.Version) *release.Version {
	var (
		best        *release.Version
		bestVersion *semver.Version
	)

	for _, v := range versions {
		parsed, err := semver.NewVersion(v.Name)
		if err != nil {
			continue
		}

		if best == nil || parsed.GreaterThan(bestVersion) {
			best, bestVersion = v, parsed
		}
	}

	return best
}

// SortAscending returns the versions ordered by ascending semantic version.
// The input slice is not modified; unparseable names sort first.
func SortAscending(versions []*release.Version) []*release.Version {
	out := append([]*release.Version(nil), versions...)

	sort.SliceStable(out, func(i, j int) bool {
		left, leftErr := semver.NewVersion(out[i].Name)
		right, rightErr := semver.NewVersion(out[j].Name)

		if leftErr != nil {
			return rightErr == nil
		}

		if rightErr != nil {
			return false
		}

		return left.LessThan(right)
	})

	return out
}

// FullyRolledOut returns the non-dead versions at 100% rollout. The latest
// installer for every (platform, arch) pair is chosen among these.
func FullyRolledOut(versions []*release.Version) []*release.Version {
	var out []*release.Version
	for _, v := range versions {
		if !v.Dead && v.Rollout == release.RolloutFull {
			out = append(out, v)
		}
	}

	return out
}
