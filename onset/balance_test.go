package onset

import (
	"math"
	"testing"
)

// syntheticDataset returns rows whose first column is the row index, so kept
// rows can be traced back to the input.
func syntheticDataset(positives, negatives int) Dataset {
	var ds Dataset
	for i := 0; i < positives+negatives; i++ {
		label := 0
		if i < positives {
			label = 1
		}
		ds.Append([][]float64{{float64(i), float64(i % 7)}}, []int{label})
	}
	return ds
}

func TestNegativesToKeep(t *testing.T) {
	t.Parallel()

	cases := []struct {
		positives int
		ratio     float64
		want      int
	}{
		{50, 0.2, 200},
		{3, 0.2, 12},
		{7, 0.3, 16}, // 16.33 rounds down
		{10, 0.25, 30},
	}
	for _, tc := range cases {
		if got := NegativesToKeep(tc.positives, tc.ratio); got != tc.want {
			t.Errorf("NegativesToKeep(%d, %v) = %d, want %d", tc.positives, tc.ratio, got, tc.want)
		}
	}
}

func TestBalanceDatasetReachesTarget(t *testing.T) {
	t.Parallel()

	ds := syntheticDataset(50, 950)
	balanced, report := BalanceDataset(ds, 0.2, 42)

	if !report.Applied {
		t.Fatalf("balancing should apply at 5%% positives")
	}
	sum := balanced.Summary()
	if sum.Onsets != 50 || sum.Samples != 250 {
		t.Fatalf("balanced summary = %+v, want 50 onsets in 250 samples", sum)
	}
	if math.Abs(sum.PositiveFraction-0.2) > 1e-12 {
		t.Fatalf("positive fraction = %v, want 0.2", sum.PositiveFraction)
	}
	if report.NegativesKept != 200 || report.NegativesDropped != 750 {
		t.Fatalf("report = %+v", report)
	}

	// Every original positive survives exactly once.
	seen := map[int]bool{}
	for i, row := range balanced.Features {
		idx := int(row[0])
		if seen[idx] {
			t.Fatalf("row %d sampled twice", idx)
		}
		seen[idx] = true
		if want := ds.Labels[idx]; balanced.Labels[i] != want {
			t.Fatalf("row %d label changed from %d to %d", idx, want, balanced.Labels[i])
		}
	}
	for i := 0; i < 50; i++ {
		if !seen[i] {
			t.Fatalf("positive row %d was dropped", i)
		}
	}

	// Kept rows are shuffled, not left with positives first.
	allPositivesFirst := true
	for i := 0; i < 50; i++ {
		if balanced.Labels[i] != 1 {
			allPositivesFirst = false
			break
		}
	}
	if allPositivesFirst {
		t.Fatalf("balanced rows were not shuffled")
	}
}

func TestBalanceDatasetIsSeeded(t *testing.T) {
	t.Parallel()

	ds := syntheticDataset(20, 400)
	a, _ := BalanceDataset(ds, 0.2, 7)
	b, _ := BalanceDataset(ds, 0.2, 7)
	c, _ := BalanceDataset(ds, 0.2, 8)

	same := func(x, y Dataset) bool {
		for i := range x.Features {
			if x.Features[i][0] != y.Features[i][0] {
				return false
			}
		}
		return true
	}
	if !same(a, b) {
		t.Fatalf("same seed produced different samples")
	}
	if same(a, c) {
		t.Fatalf("different seeds produced identical samples")
	}
}

func TestBalanceDatasetNoOp(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		positives int
		negatives int
	}{
		{"at target", 20, 80},
		{"above target", 60, 40},
		{"no positives", 0, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ds := syntheticDataset(tc.positives, tc.negatives)
			out, report := BalanceDataset(ds, 0.2, 42)
			if report.Applied {
				t.Fatalf("balancing should not apply")
			}
			if out.Len() != ds.Len() {
				t.Fatalf("dataset size changed from %d to %d", ds.Len(), out.Len())
			}
			for i := range ds.Labels {
				if out.Features[i][0] != ds.Features[i][0] {
					t.Fatalf("row order changed at %d", i)
				}
			}
		})
	}
}
