package recon

import "sort"

// rankCandidates orders proposals most recent first by posting date; reverse
// flips to oldest first. The sort is stable so equal dates keep discovery
// order. Future-dated candidates are flagged during normalization, never
// dropped here.
func rankCandidates(candidates []*MatchCandidate, reverse bool) {
	sort.SliceStable(candidates, func(i, j int) bool {
		di, dj := candidates[i].PostingDate, candidates[j].PostingDate
		if di.Equal(dj) {
			return false
		}
		if reverse {
			return di.Before(dj)
		}
		return di.After(dj)
	})
}
