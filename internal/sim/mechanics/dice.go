package mechanics

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidDiceExpression indicates a dice expression could not be parsed or
// falls outside the supported bounds.
var ErrInvalidDiceExpression = errors.New("invalid dice expression")

// Supported dice expression bounds.
const (
	MinDiceCount = 1
	MaxDiceCount = 100
	MinDieSides  = 2
	MaxDieSides  = 1000
)

var diceExpressionPattern = regexp.MustCompile(`^(\d+)d(\d+)([+-]\d+)?$`)

// DiceExpression is a parsed NdM or NdM±K expression.
type DiceExpression struct {
	Count    int
	Sides    int
	Modifier int
}

// String renders the expression in canonical NdM±K form.
func (e DiceExpression) String() string {
	if e.Modifier == 0 {
		return fmt.Sprintf("%dd%d", e.Count, e.Sides)
	}
	return fmt.Sprintf("%dd%d%+d", e.Count, e.Sides, e.Modifier)
}

// ParseDiceExpression parses an expression of the form NdM or NdM±K.
// Count must be 1-100 and sides 2-1000.
func ParseDiceExpression(expr string) (DiceExpression, error) {
	trimmed := strings.ToLower(strings.TrimSpace(expr))
	match := diceExpressionPattern.FindStringSubmatch(trimmed)
	if match == nil {
		return DiceExpression{}, fmt.Errorf("%w: %q", ErrInvalidDiceExpression, expr)
	}

	count, err := strconv.Atoi(match[1])
	if err != nil || count < MinDiceCount || count > MaxDiceCount {
		return DiceExpression{}, fmt.Errorf("%w: count out of range in %q", ErrInvalidDiceExpression, expr)
	}
	sides, err := strconv.Atoi(match[2])
	if err != nil || sides < MinDieSides || sides > MaxDieSides {
		return DiceExpression{}, fmt.Errorf("%w: sides out of range in %q", ErrInvalidDiceExpression, expr)
	}

	modifier := 0
	if match[3] != "" {
		modifier, err = strconv.Atoi(match[3])
		if err != nil {
			return DiceExpression{}, fmt.Errorf("%w: bad modifier in %q", ErrInvalidDiceExpression, expr)
		}
	}

	return DiceExpression{Count: count, Sides: sides, Modifier: modifier}, nil
}

// DiceRoll captures the result of rolling one expression.
type DiceRoll struct {
	// Expression is the canonical form of what was rolled.
	Expression string
	// Rolls holds each individual die result in roll order.
	Rolls []int
	// Modifier is the expression's flat modifier.
	Modifier int
	// Total is the sum of all rolls plus the modifier.
	Total int
}

// RollDice rolls a dice expression with an explicit seed.
//
// Rolling is a pure function of the expression and the seed: identical
// arguments always reproduce identical individual rolls and total.
func RollDice(expr string, seed int64) (DiceRoll, error) {
	parsed, err := ParseDiceExpression(expr)
	if err != nil {
		return DiceRoll{}, err
	}

	rng := rand.New(rand.NewSource(seed))
	rolls := make([]int, parsed.Count)
	total := parsed.Modifier
	for i := 0; i < parsed.Count; i++ {
		value := rng.Intn(parsed.Sides) + 1
		rolls[i] = value
		total += value
	}

	return DiceRoll{
		Expression: parsed.String(),
		Rolls:      rolls,
		Modifier:   parsed.Modifier,
		Total:      total,
	}, nil
}

// DeriveTurnSeed deterministically derives a roll seed from the turn's
// identity and the roll's ordinal within the turn. Re-resolving the same
// committed turn reproduces the same rolls, while different turns and
// different rolls within a turn get independent seeds.
func DeriveTurnSeed(sessionID string, turnIndex int, userActionID string, ordinal int) int64 {
	digest := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s|%d", sessionID, turnIndex, userActionID, ordinal)))
	return int64(binary.BigEndian.Uint64(digest[:8]))
}
