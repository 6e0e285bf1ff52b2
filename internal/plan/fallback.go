package plan

import (
	"path"
	"sort"

	"repobrief/internal/types"
)

// fallbackOrder is the category priority of the first fallback round.
var fallbackOrder = []types.Category{
	types.CategoryEntrypoint,
	types.CategoryConfig,
	types.CategoryCoreSource,
	types.CategoryDoc,
}

// perDirLimit caps NORMAL picks per directory in the second round.
const perDirLimit = 3

// Fallback selects up to max candidates without a model. The first round
// takes the shallowest NORMAL path of each priority category. The second
// adds NORMAL paths in tree order with at most perDirLimit per directory.
// The last fills from whatever is left, NORMAL before DEPRIORITIZED.
func Fallback(candidates []types.Candidate, max int, reason string) types.SelectionPlan {
	plan := types.SelectionPlan{Source: types.SourceFallback, Reason: reason}
	if max <= 0 {
		return plan
	}
	taken := map[string]struct{}{}
	add := func(p string) bool {
		if _, ok := taken[p]; ok {
			return false
		}
		taken[p] = struct{}{}
		plan.Paths = append(plan.Paths, types.PlannedPath{Path: p, Rank: len(plan.Paths)})
		return true
	}
	full := func() bool { return len(plan.Paths) >= max }

	for _, cat := range fallbackOrder {
		if full() {
			return plan
		}
		if c, ok := shallowest(candidates, cat); ok {
			add(c.Path)
		}
	}

	perDir := map[string]int{}
	for _, p := range plan.Paths {
		perDir[path.Dir(p.Path)]++
	}
	for _, c := range candidates {
		if full() {
			return plan
		}
		if c.Tier != types.TierNormal || c.Category == types.CategoryTest {
			continue
		}
		dir := path.Dir(c.Path)
		if perDir[dir] >= perDirLimit {
			continue
		}
		if add(c.Path) {
			perDir[dir]++
		}
	}

	rest := make([]types.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := taken[c.Path]; !ok && c.Tier != types.TierHardSkip {
			rest = append(rest, c)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].Tier < rest[j].Tier })
	for _, c := range rest {
		if full() {
			break
		}
		add(c.Path)
	}
	return plan
}

// shallowest returns the NORMAL candidate of cat with the fewest path
// segments, earliest in tree order on ties.
func shallowest(candidates []types.Candidate, cat types.Category) (types.Candidate, bool) {
	var (
		best  types.Candidate
		found bool
	)
	for _, c := range candidates {
		if c.Tier != types.TierNormal || c.Category != cat {
			continue
		}
		if !found || c.Depth() < best.Depth() {
			best, found = c, true
		}
	}
	return best, found
}
