package preprocess

import (
	"fmt"
	"math"
	"slices"

	"github.com/ehr/trialgen/internal/platform/randomstate"
)

// SplitConfig controls the train/val/test partition. Fractions are of the
// whole input.
type SplitConfig struct {
	TestFraction float64 `json:"test_fraction"`
	ValFraction  float64 `json:"val_fraction"`
	Seed         uint32  `json:"seed"`
}

func DefaultSplitConfig() SplitConfig {
	return SplitConfig{TestFraction: 0.2, ValFraction: 0.1, Seed: 42}
}

func (c SplitConfig) Validate() error {
	if c.TestFraction <= 0 || c.TestFraction >= 1 {
		return fmt.Errorf("%w: test fraction %v must be in (0, 1)", ErrValidation, c.TestFraction)
	}
	if c.ValFraction <= 0 || c.ValFraction >= 1 {
		return fmt.Errorf("%w: val fraction %v must be in (0, 1)", ErrValidation, c.ValFraction)
	}
	if c.TestFraction+c.ValFraction >= 1 {
		return fmt.Errorf("%w: test + val fractions %v leave no training rows", ErrValidation, c.TestFraction+c.ValFraction)
	}
	return nil
}

// Split partitions rows into train, val and test, each stratified on the
// eligible label. The test subset is held out first; the remainder is then
// split again with the val fraction rescaled to the rows left over. Both
// splits restart the random state from cfg.Seed.
func Split(rows []Row, cfg SplitConfig) (train, val, test []Row, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: no rows to split", ErrValidation)
	}

	trainValIdx, testIdx, err := stratifiedShuffleSplit(labelsOf(rows), cfg.TestFraction, cfg.Seed)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("holding out test rows: %w", err)
	}
	trainVal := take(rows, trainValIdx)
	test = take(rows, testIdx)

	adjusted := cfg.ValFraction / (1 - cfg.TestFraction)
	trainIdx, valIdx, err := stratifiedShuffleSplit(labelsOf(trainVal), adjusted, cfg.Seed)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("holding out val rows: %w", err)
	}
	return take(trainVal, trainIdx), take(trainVal, valIdx), test, nil
}

func labelsOf(rows []Row) []int {
	labels := make([]int, len(rows))
	for i := range rows {
		labels[i] = rows[i].Eligible
	}
	return labels
}

func take(rows []Row, idx []int) []Row {
	out := make([]Row, len(idx))
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out
}

// stratifiedShuffleSplit draws one train/test partition of the positions in
// labels. The test side gets ceil(testFraction*n) positions, and every label
// class is represented on both sides in proportion to its size.
func stratifiedShuffleSplit(labels []int, testFraction float64, seed uint32) (train, test []int, err error) {
	n := len(labels)
	nTest := int(math.Ceil(testFraction * float64(n)))
	nTrain := n - nTest
	if nTrain <= 0 {
		return nil, nil, fmt.Errorf("%w: %d rows with test fraction %v leave an empty train side", ErrValidation, n, testFraction)
	}

	classes := slices.Compact(slices.Sorted(slices.Values(labels)))
	if len(classes) < 2 {
		return nil, nil, fmt.Errorf("%w: eligible label has %d class(es), need 2", ErrValidation, len(classes))
	}

	members := make([][]int, len(classes))
	for i, l := range labels {
		c, _ := slices.BinarySearch(classes, l)
		members[c] = append(members[c], i)
	}
	counts := make([]int, len(classes))
	for c := range members {
		counts[c] = len(members[c])
		if counts[c] < 2 {
			return nil, nil, fmt.Errorf("%w: label %d has only %d member(s), need at least 2", ErrValidation, classes[c], counts[c])
		}
	}
	if nTrain < len(classes) {
		return nil, nil, fmt.Errorf("%w: train side of %d rows cannot hold %d classes", ErrValidation, nTrain, len(classes))
	}
	if nTest < len(classes) {
		return nil, nil, fmt.Errorf("%w: test side of %d rows cannot hold %d classes", ErrValidation, nTest, len(classes))
	}

	rng := randomstate.New(seed)
	trainCounts := approximateMode(counts, nTrain, rng)
	remaining := make([]int, len(counts))
	for c := range counts {
		remaining[c] = counts[c] - trainCounts[c]
	}
	testCounts := approximateMode(remaining, nTest, rng)

	train = make([]int, 0, nTrain)
	test = make([]int, 0, nTest)
	for c := range classes {
		perm := rng.Permutation(counts[c])
		shuffled := make([]int, len(perm))
		for i, p := range perm {
			shuffled[i] = members[c][p]
		}
		train = append(train, shuffled[:trainCounts[c]]...)
		test = append(test, shuffled[trainCounts[c]:trainCounts[c]+testCounts[c]]...)
	}
	rng.Shuffle(train)
	rng.Shuffle(test)
	return train, test, nil
}

// approximateMode allocates draws across classes in proportion to counts.
// Each class gets the floor of its share; leftover draws go to the classes
// with the largest fractional remainders, with ties broken at random.
func approximateMode(counts []int, draws int, rng *randomstate.RandomState) []int {
	total := 0
	for _, c := range counts {
		total += c
	}

	continuous := make([]float64, len(counts))
	floored := make([]int, len(counts))
	remainder := make([]float64, len(counts))
	assigned := 0
	for i, c := range counts {
		continuous[i] = float64(c) / float64(total) * float64(draws)
		f := math.Floor(continuous[i])
		floored[i] = int(f)
		remainder[i] = continuous[i] - f
		assigned += floored[i]
	}

	need := draws - assigned
	if need <= 0 {
		return floored
	}

	values := slices.Compact(slices.Sorted(slices.Values(remainder)))
	slices.Reverse(values)
	for _, v := range values {
		var tied []int
		for i, r := range remainder {
			if r == v {
				tied = append(tied, i)
			}
		}
		n := min(len(tied), need)
		for _, i := range rng.ChoiceWithoutReplacement(tied, n) {
			floored[i]++
		}
		need -= n
		if need == 0 {
			break
		}
	}
	return floored
}
