package onset

import "math"

// BalanceReport describes what BalanceDataset did.
type BalanceReport struct {
	Applied          bool    `json:"applied"`
	Positives        int     `json:"positives"`
	NegativesKept    int     `json:"negativesKept"`
	NegativesDropped int     `json:"negativesDropped"`
	RatioBefore      float64 `json:"ratioBefore"`
	RatioAfter       float64 `json:"ratioAfter"`
}

// NegativesToKeep solves positives / (positives + n) = targetRatio for n.
func NegativesToKeep(positives int, targetRatio float64) int {
	return int(math.Round(float64(positives) * (1 - targetRatio) / targetRatio))
}

// BalanceDataset downsamples negatives when the positive fraction is below
// targetRatio. All positives are kept, negatives are drawn without replacement
// and the kept rows are shuffled, all from a source seeded with seed. A dataset
// already at or above the target, or one with no positives, is returned as is.
func BalanceDataset(ds Dataset, targetRatio float64, seed uint64) (Dataset, BalanceReport) {
	before := ds.Summary()
	report := BalanceReport{
		Positives:     before.Onsets,
		NegativesKept: before.Samples - before.Onsets,
		RatioBefore:   before.PositiveFraction,
		RatioAfter:    before.PositiveFraction,
	}
	if before.Samples == 0 || before.Onsets == 0 || before.PositiveFraction >= targetRatio {
		return ds, report
	}

	negatives, positives := ds.ClassIndices()
	keep := NegativesToKeep(len(positives), targetRatio)
	if keep > len(negatives) {
		keep = len(negatives)
	}

	r := newRand(seed)
	perm := r.Perm(len(negatives))

	indices := make([]int, 0, len(positives)+keep)
	indices = append(indices, positives...)
	for _, p := range perm[:keep] {
		indices = append(indices, negatives[p])
	}
	r.Shuffle(len(indices), func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })

	out := ds.Subset(indices)
	report.Applied = true
	report.NegativesKept = keep
	report.NegativesDropped = len(negatives) - keep
	report.RatioAfter = out.Summary().PositiveFraction

	return out, report
}
