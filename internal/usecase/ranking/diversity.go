package ranking

import (
	"slices"
	"strings"

	"github.com/kailas-cloud/cinerank/internal/domain/candidate"
)

// diversify re-orders candidates already sorted by relevance. Each step
// picks the candidate maximizing relevance*RelevanceWeight +
// diversity*DiversityWeight against everything picked so far, then the
// guard makes sure the leading window is not one genre/decade cluster.
func (r *Ranker) diversify(sorted []candidate.Candidate, limit int) []candidate.Candidate {
	n := len(sorted)
	if n <= 1 {
		return sorted
	}
	target := n
	if limit > 0 && limit < n {
		target = limit
	}

	rel := make([]float64, n)
	if top := sorted[0].FinalScore(); top > 0 {
		for i, c := range sorted {
			rel[i] = c.FinalScore() / top
		}
	}

	profiles := make([]itemProfile, n)
	for i, c := range sorted {
		profiles[i] = profileOf(c)
	}

	picked := make([]bool, n)
	divSum := make([]float64, n)
	order := make([]int, 0, target)

	pick := func(i int) {
		picked[i] = true
		order = append(order, i)
		for j := range sorted {
			if !picked[j] {
				divSum[j] += pairDiversity(profiles[i], profiles[j])
			}
		}
	}
	pick(0)

	for len(order) < target {
		best := -1
		var bestScore float64
		for j := range sorted {
			if picked[j] {
				continue
			}
			s := r.cfg.RelevanceWeight*rel[j] + r.cfg.DiversityWeight*divSum[j]/float64(len(order))
			// j walks relevance order, so on equal scores the earlier one has
			// the higher relevance or the smaller id
			if best < 0 || s > bestScore {
				best, bestScore = j, s
			}
		}
		pick(best)
	}

	order = r.guard(order, profiles, target)

	out := make([]candidate.Candidate, len(order))
	for i, idx := range order {
		out[i] = sorted[idx]
	}
	return out
}

// guard moves the most relevant outsider into the last slot of the leading
// window when every item in the window shares the top item's genres and decade.
func (r *Ranker) guard(order []int, profiles []itemProfile, target int) []int {
	window := min(r.cfg.GuardWindow, len(order))
	if window < 2 {
		return order
	}

	top := profiles[order[0]]
	for _, idx := range order[1:window] {
		if top.differs(profiles[idx]) {
			return order
		}
	}

	inWindow := make(map[int]bool, window)
	for _, idx := range order[:window] {
		inWindow[idx] = true
	}
	alt := -1
	for i := range profiles {
		if !inWindow[i] && top.differs(profiles[i]) {
			alt = i
			break
		}
	}
	if alt < 0 {
		return order
	}

	if pos := slices.Index(order, alt); pos >= 0 {
		order = slices.Delete(order, pos, pos+1)
	}
	order = slices.Insert(order, window-1, alt)
	if len(order) > target {
		order = order[:target]
	}
	return order
}

type itemProfile struct {
	genres map[string]struct{}
	decade int
	known  bool
}

func profileOf(c candidate.Candidate) itemProfile {
	p := itemProfile{genres: make(map[string]struct{})}
	for _, g := range c.Genres() {
		p.genres[strings.ToLower(strings.TrimSpace(g))] = struct{}{}
	}
	if year, ok := c.Year(); ok {
		p.decade, p.known = year/10, true
	}
	return p
}

func (p itemProfile) differs(o itemProfile) bool {
	if jaccardDistance(p.genres, o.genres) > 0 {
		return true
	}
	return p.known && o.known && p.decade != o.decade
}

// pairDiversity is the mean of genre Jaccard distance and decade distance.
func pairDiversity(a, b itemProfile) float64 {
	return (jaccardDistance(a.genres, b.genres) + decadeDistance(a, b)) / 2
}

func jaccardDistance(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for g := range a {
		if _, ok := b[g]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return 1 - float64(inter)/float64(union)
}

// decadeDistance is 0 for the same decade, 0.5 for adjacent decades and 1
// beyond; an unknown year sits halfway.
func decadeDistance(a, b itemProfile) float64 {
	if !a.known || !b.known {
		return 0.5
	}
	d := a.decade - b.decade
	if d < 0 {
		d = -d
	}
	return min(float64(d)/2, 1)
}
