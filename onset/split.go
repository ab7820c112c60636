package onset

import (
	"fmt"
	"math"
)

// Split is a train/validation partition of a dataset.
type Split struct {
	Train      Dataset
	Validation Dataset
}

// StratifiedSplit holds out valFraction of each class for validation so both
// halves keep the dataset's positive fraction. Rows are drawn with a source
// seeded from seed and each half is shuffled.
func StratifiedSplit(ds Dataset, valFraction float64, seed uint64) (Split, error) {
	if valFraction <= 0 || valFraction >= 1 {
		return Split{}, fmt.Errorf("validation fraction must be in (0, 1), got %g", valFraction)
	}
	if ds.Len() == 0 {
		return Split{}, ErrEmptyDataset
	}

	r := newRand(seed)
	var trainIdx, valIdx []int
	negatives, positives := ds.ClassIndices()
	for _, class := range [][]int{negatives, positives} {
		if len(class) == 0 {
			continue
		}
		nVal := int(math.Round(float64(len(class)) * valFraction))
		if len(class) >= 2 {
			nVal = max(1, min(nVal, len(class)-1))
		}
		perm := r.Perm(len(class))
		for i, p := range perm {
			if i < nVal {
				valIdx = append(valIdx, class[p])
			} else {
				trainIdx = append(trainIdx, class[p])
			}
		}
	}

	r.Shuffle(len(trainIdx), func(i, j int) { trainIdx[i], trainIdx[j] = trainIdx[j], trainIdx[i] })
	r.Shuffle(len(valIdx), func(i, j int) { valIdx[i], valIdx[j] = valIdx[j], valIdx[i] })

	return Split{Train: ds.Subset(trainIdx), Validation: ds.Subset(valIdx)}, nil
}

// ClassWeights maps a class label to its loss weight.
type ClassWeights map[int]float64

// BalancedClassWeights weights each present class by n / (classes × count).
func BalancedClassWeights(labels []int) ClassWeights {
	counts := map[int]int{}
	for _, l := range labels {
		counts[l]++
	}
	weights := ClassWeights{}
	if len(labels) == 0 {
		return weights
	}
	for class, count := range counts {
		weights[class] = float64(len(labels)) / (float64(len(counts)) * float64(count))
	}
	return weights
}
