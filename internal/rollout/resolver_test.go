package rollout

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/berthd/berth/internal/domain/release"
)

// channel returns a version list covering rollout and dead combinations.
func channel() []*release.Version {
	return []*release.Version{
		{Name: "0.0.1", Rollout: 100},
		{Name: "0.0.2", Rollout: 100},
		{Name: "0.0.3", Rollout: 99},
		{Name: "0.0.4", Rollout: 10, Dead: true},
	}
}

// names extracts version names for compact assertions.
func names(versions []*release.Version) []string {
	out := make([]string, 0, len(versions))
	for _, v := range versions {
		out = append(out, v.Name)
	}

	return out
}

// TestEligible verifies threshold filtering and dead exclusion.
func TestEligible(t *testing.T) {
	t.Parallel()

	versions := channel()

	require.Equal(t, []string{"0.0.1", "0.0.2", "0.0.3"}, names(Eligible(versions, 0)))
	require.Equal(t, []string{"0.0.1", "0.0.2", "0.0.3"}, names(Eligible(versions, 50)))
	require.Equal(t, []string{"0.0.1", "0.0.2"}, names(Eligible(versions, 100)))

	// Dead versions never qualify, regardless of rollout value.
	dead := []*release.Version{{Name: "1.0.0", Rollout: 100, Dead: true}}
	require.Empty(t, Eligible(dead, 0))
}

// TestRolloutMonotonicity verifies the subset property across all thresholds.
func TestRolloutMonotonicity(t *testing.T) {
	t.Parallel()

	versions := channel()

	previous := Eligible(versions, 0)
	for r := 1; r <= 100; r++ {
		current := Eligible(versions, r)
		require.Subset(t, names(previous), names(current), "threshold %d", r)
		previous = current
	}
}

// TestLatest verifies semver ordering, not list order.
func TestLatest(t *testing.T) {
	t.Parallel()

	versions := []*release.Version{
		{Name: "0.0.10", Rollout: 100},
		{Name: "0.0.9", Rollout: 100},
		{Name: "0.0.2", Rollout: 100},
	}

	require.Equal(t, "0.0.10", Latest(versions).Name)
	require.Nil(t, Latest(nil))

	// Unparseable names are skipped.
	require.Equal(t, "0.0.2", Latest([]*release.Version{
		{Name: "not-a-version"},
		{Name: "0.0.2"},
	}).Name)
}

// TestFullyRolledOutLatest verifies the latest-installer rule: 0.0.3 at 99%
// must not win over 0.0.2 at 100%.
func TestFullyRolledOutLatest(t *testing.T) {
	t.Parallel()

	winner := Latest(FullyRolledOut(channel()))
	require.NotNil(t, winner)
	require.Equal(t, "0.0.2", winner.Name)
}

// TestSortAscending verifies semantic ordering of manifest lines.
func TestSortAscending(t *testing.T) {
	t.Parallel()

	versions := []*release.Version{
		{Name: "0.0.10"},
		{Name: "0.0.2"},
		{Name: "0.0.1"},
	}

	sorted := SortAscending(versions)
	require.Equal(t, []string{"0.0.1", "0.0.2", "0.0.10"}, names(sorted))

	// Input order untouched.
	require.Equal(t, []string{"0.0.10", "0.0.2", "0.0.1"}, names(versions))
}
