// Package dice implements the dice expression evaluator behind the roll command.
//
// An expression mixes dice blocks with plain arithmetic, e.g. "4d6kh3r1 + d20 + 5".
// Each dice block is rolled, its total is substituted back into the expression,
// and the remaining arithmetic is evaluated by a restricted parser that never
// executes anything beyond + - * / and parentheses.
package dice

import (
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// maxRerollAttempts caps how many times a single die is redrawn when a reroll
// threshold is set. Without the cap a threshold >= sides would redraw forever;
// when the cap is hit the last drawn value is kept even if it is still at or
// below the threshold.
const maxRerollAttempts = 50

// blockPattern matches one dice block like "4d6kh3r1", "d20" or "2d%".
// Groups: count, sides, keep operator (kh/kl), keep count, reroll threshold.
var blockPattern = regexp.MustCompile(`(?i)(\d*)d(100|%|\d+)(?:(kh|kl)(\d+))?(?:r(\d+))?`)

// ErrEmptyExpression is returned when the input contains nothing to evaluate.
var ErrEmptyExpression = errors.New("empty roll expression")

// Roller is the source of randomness for dice rolls.
// Implementations must return a uniformly distributed integer in [1, sides].
type Roller interface {
	Roll(sides int) int
}

// randRoller rolls using the process-wide math/rand source, which is safe for
// concurrent use.
type randRoller struct{}

func (randRoller) Roll(sides int) int {
	return rand.Intn(sides) + 1
}

// DefaultRoller returns the process-wide random roller.
func DefaultRoller() Roller {
	return randRoller{}
}

// KeepOp selects which rolls of a block are summed.
type KeepOp int

const (
	// KeepNone sums every roll.
	KeepNone KeepOp = iota
	// KeepHighest sums only the highest N rolls.
	KeepHighest
	// KeepLowest sums only the lowest N rolls.
	KeepLowest
)

func (op KeepOp) String() string {
	switch op {
	case KeepHighest:
		return "kh"
	case KeepLowest:
		return "kl"
	default:
		return ""
	}
}

// Block is the parsed form of one dice block occurrence within an expression.
type Block struct {
	// Text is the exact substring that matched, e.g. "4d6kh3r1".
	Text string
	// Count is the number of dice (1 if omitted in the input).
	Count int
	// Sides is the number of faces ("%" parses as 100).
	Sides int
	// Keep is the keep/drop operator, if any.
	Keep KeepOp
	// KeepCount is the number of dice kept when Keep is set.
	KeepCount int
	// Reroll is the reroll threshold; valid only when HasReroll is true.
	// Every die at or below the threshold is redrawn.
	Reroll    int
	HasReroll bool

	// Character span within the cleaned expression, used for substitution.
	start, end int
}

// Outcome is the resolved result of one dice block.
//
// Kept and Dropped always partition Rerolled, and Rerolled has the same
// length as Initial (it aliases Initial when no reroll was requested).
type Outcome struct {
	Initial  []int
	Rerolled []int
	Kept     []int
	Dropped  []int
	// Total is the sum of Kept.
	Total int
	// Trace holds one human-readable line per resolution stage.
	Trace []string
}

// BlockOutcome pairs a resolved block with its original text.
type BlockOutcome struct {
	Text    string
	Outcome Outcome
}

// Result is the final output of evaluating one roll expression.
type Result struct {
	// Total is the evaluated value of the whole expression.
	Total int
	// Blocks lists the dice block outcomes in order of appearance.
	// Empty when the expression was pure arithmetic.
	Blocks []BlockOutcome
}

// Evaluate resolves a roll expression to its total plus a per-block breakdown.
// A nil roller uses the process-wide random source.
//
// Whitespace is insignificant. An expression without dice blocks is evaluated
// as plain arithmetic. Errors identify the malformed portion of the input and
// are safe to show to the user.
func Evaluate(expr string, roller Roller) (*Result, error) {
	if roller == nil {
		roller = DefaultRoller()
	}

	cleaned := stripSpace(expr)
	if cleaned == "" {
		return nil, ErrEmptyExpression
	}

	blocks := findBlocks(cleaned)

	result := &Result{}

	if len(blocks) == 0 {
		total, err := evalArithmetic(cleaned)
		if err != nil {
			return nil, err
		}
		result.Total = total
		return result, nil
	}

	totals := make([]int, len(blocks))
	for i, b := range blocks {
		outcome, err := resolve(b, roller)
		if err != nil {
			return nil, err
		}
		totals[i] = outcome.Total
		result.Blocks = append(result.Blocks, BlockOutcome{Text: b.Text, Outcome: outcome})
	}

	total, err := evalArithmetic(substitute(cleaned, blocks, totals))
	if err != nil {
		return nil, err
	}
	result.Total = total

	return result, nil
}

// ContainsBlock reports whether the expression holds at least one dice block.
func ContainsBlock(expr string) bool {
	return blockPattern.MatchString(stripSpace(expr))
}

// findBlocks scans the cleaned expression left to right and parses every
// non-overlapping dice block, in order of appearance.
func findBlocks(expr string) []Block {
	matches := blockPattern.FindAllStringSubmatchIndex(expr, -1)

	blocks := make([]Block, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, parseBlock(expr, m))
	}
	return blocks
}

// parseBlock builds a Block from one submatch index set.
// The pattern guarantees every captured group is pure digits (or "%"), so the
// Atoi calls cannot fail; zero values are still validated by resolve.
func parseBlock(expr string, m []int) Block {
	group := func(i int) string {
		if m[2*i] < 0 {
			return ""
		}
		return expr[m[2*i]:m[2*i+1]]
	}

	b := Block{
		Text:  expr[m[0]:m[1]],
		start: m[0],
		end:   m[1],
		Count: 1,
	}

	if s := group(1); s != "" {
		b.Count, _ = strconv.Atoi(s)
	}

	if s := group(2); s == "%" {
		b.Sides = 100
	} else {
		b.Sides, _ = strconv.Atoi(s)
	}

	if s := group(3); s != "" {
		if strings.EqualFold(s, "kh") {
			b.Keep = KeepHighest
		} else {
			b.Keep = KeepLowest
		}
		b.KeepCount, _ = strconv.Atoi(group(4))
	}

	if s := group(5); s != "" {
		b.Reroll, _ = strconv.Atoi(s)
		b.HasReroll = true
	}

	return b
}

// resolve rolls one block and applies its reroll and keep/drop policies.
func resolve(b Block, roller Roller) (Outcome, error) {
	if b.Count < 1 {
		return Outcome{}, fmt.Errorf("invalid dice block '%s': dice count must be at least 1", b.Text)
	}
	if b.Sides < 1 {
		return Outcome{}, fmt.Errorf("invalid dice block '%s': dice must have at least 1 side", b.Text)
	}

	var out Outcome

	out.Initial = make([]int, b.Count)
	for i := range out.Initial {
		out.Initial[i] = roller.Roll(b.Sides)
	}
	out.Trace = append(out.Trace, fmt.Sprintf("Initial Rolls (%dd%d): %s", b.Count, b.Sides, joinInts(out.Initial)))

	rolls := out.Initial
	if b.HasReroll {
		rerolled := make([]int, len(rolls))
		for i, v := range rolls {
			if v <= b.Reroll {
				for attempt := 0; attempt < maxRerollAttempts; attempt++ {
					v = roller.Roll(b.Sides)
					if v > b.Reroll {
						break
					}
				}
			}
			rerolled[i] = v
		}
		rolls = rerolled
		out.Trace = append(out.Trace, fmt.Sprintf("Rerolls (<= %d): %s", b.Reroll, joinInts(rolls)))
	}
	out.Rerolled = rolls

	kept := rolls
	var dropped []int
	if b.Keep != KeepNone {
		sorted := append([]int(nil), rolls...)
		sort.Ints(sorted)

		n := b.KeepCount
		if n > len(sorted) {
			n = len(sorted)
		}

		if b.Keep == KeepHighest {
			kept = sorted[len(sorted)-n:]
			dropped = sorted[:len(sorted)-n]
		} else {
			kept = sorted[:n]
			dropped = sorted[n:]
		}

		out.Trace = append(out.Trace, fmt.Sprintf("Kept Rolls (%s%d): %s", b.Keep, b.KeepCount, joinInts(kept)))
		if len(dropped) > 0 {
			out.Trace = append(out.Trace, fmt.Sprintf("Dropped Rolls: %s", joinInts(dropped)))
		}
	}
	out.Kept = kept
	out.Dropped = dropped

	for _, v := range kept {
		out.Total += v
	}

	return out, nil
}

// substitute builds the arithmetic-only expression by splicing each block's
// parenthesized total over its span. The input is walked once in match order,
// so earlier substitutions never invalidate later offsets.
func substitute(expr string, blocks []Block, totals []int) string {
	var sb strings.Builder
	last := 0
	for i, b := range blocks {
		sb.WriteString(expr[last:b.start])
		sb.WriteByte('(')
		sb.WriteString(strconv.Itoa(totals[i]))
		sb.WriteByte(')')
		last = b.end
	}
	sb.WriteString(expr[last:])
	return sb.String()
}

// stripSpace removes all whitespace from the expression.
func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// joinInts renders rolls as "3, 5, 2" for trace lines.
func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}
