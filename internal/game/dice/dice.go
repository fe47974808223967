package dice

import "fmt"

// RollResult holds the audit trail for a single dice roll evaluation.
//
// Postcondition: Total() == sum(Dice) + Modifier.
type RollResult struct {
	Expression string // original expression string, e.g. "2d6+3"
	Dice       []int  // individual die results before modifier
	Modifier   int    // flat modifier (may be negative)
}

// Total returns the sum of all die results plus the modifier.
//
// Postcondition: return value == sum(r.Dice) + r.Modifier.
func (r RollResult) Total() int {
	total := r.Modifier
	for _, d := range r.Dice {
		total += d
	}
	return total
}

// String returns a human-readable audit string in the format:
//
//	"2d6+3 → [4 5] +3 = 12"
func (r RollResult) String() string {
	return fmt.Sprintf("%s → %v %+d = %d", r.Expression, r.Dice, r.Modifier, r.Total())
}

// D20 rolls a single twenty-sided die.
//
// Precondition: src must be non-nil.
// Postcondition: Returns a value in [1, 20].
func D20(src Source) int {
	return src.Intn(20) + 1
}

// RollN rolls count dice with the given number of sides plus a flat modifier.
//
// Precondition: count >= 1; sides >= 2; src must be non-nil.
// Postcondition: len(result.Dice) == count.
func RollN(count, sides, modifier int, src Source) RollResult {
	if count < 1 {
		panic("dice: RollN called with count < 1")
	}
	if sides < 2 {
		panic("dice: RollN called with sides < 2")
	}
	rolled := make([]int, count)
	for i := range rolled {
		rolled[i] = src.Intn(sides) + 1
	}
	expr := fmt.Sprintf("%dd%d", count, sides)
	if modifier != 0 {
		expr = fmt.Sprintf("%s%+d", expr, modifier)
	}
	return RollResult{Expression: expr, Dice: rolled, Modifier: modifier}
}
