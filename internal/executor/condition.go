package executor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/harrison/coordinator/internal/models"
)

// ContextSource is the reserved reference prefix that reads ExecutionContext values.
const ContextSource = "context"

// ConfidenceField is the reserved field name that reads an agent's confidence score.
const ConfidenceField = "confidence"

// Operator is a comparison operator in a condition predicate.
type Operator string

// Supported comparison operators
const (
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
)

// LiteralKind identifies how a predicate literal was written.
type LiteralKind int

const (
	LiteralString LiteralKind = iota
	LiteralNumber
	LiteralBool
)

// Literal is the right-hand side of a predicate.
type Literal struct {
	Kind LiteralKind
	Text string // Unquoted text as written
	Num  float64
	Bool bool
}

// Predicate is a parsed "<source>.<field> <op> <literal>" condition.
type Predicate struct {
	Source  string // Agent type, or ContextSource
	Field   string // Field path; ConfidenceField is reserved
	Op      Operator
	Literal Literal
}

// ParsePredicate tokenizes and parses a single condition. Operators do not
// need surrounding whitespace and quoted literals may contain spaces:
//
//	valuation.confidence>=0.8
//	inspection.status == "needs review"
func ParsePredicate(input string) (Predicate, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return Predicate{}, fmt.Errorf("empty condition")
	}

	// Reference: everything up to whitespace or the first operator character.
	end := strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune("<>=!", r)
	})
	if end <= 0 {
		return Predicate{}, fmt.Errorf("condition %q: missing reference", input)
	}
	ref := s[:end]
	rest := strings.TrimLeftFunc(s[end:], unicode.IsSpace)

	source, field, ok := strings.Cut(ref, ".")
	if !ok || source == "" || field == "" {
		return Predicate{}, fmt.Errorf("condition %q: reference must be <agent>.<field>", input)
	}

	op, rest, err := parseOperator(rest)
	if err != nil {
		return Predicate{}, fmt.Errorf("condition %q: %w", input, err)
	}

	lit, err := parseLiteral(strings.TrimSpace(rest))
	if err != nil {
		return Predicate{}, fmt.Errorf("condition %q: %w", input, err)
	}

	return Predicate{Source: source, Field: field, Op: op, Literal: lit}, nil
}

func parseOperator(s string) (Operator, string, error) {
	// Two-character operators first so ">=" is not read as ">".
	for _, op := range []Operator{OpGreaterEqual, OpLessEqual, OpEqual, OpNotEqual, OpGreater, OpLess} {
		if strings.HasPrefix(s, string(op)) {
			return op, s[len(op):], nil
		}
	}
	return "", "", fmt.Errorf("missing or unknown operator")
}

func parseLiteral(s string) (Literal, error) {
	if s == "" {
		return Literal{}, fmt.Errorf("missing literal")
	}

	if s[0] == '"' || s[0] == '\'' {
		quote := s[0]
		var sb strings.Builder
		for i := 1; i < len(s); i++ {
			c := s[i]
			switch {
			case c == '\\' && i+1 < len(s):
				i++
				sb.WriteByte(s[i])
			case c == quote:
				if strings.TrimSpace(s[i+1:]) != "" {
					return Literal{}, fmt.Errorf("unexpected text after quoted literal")
				}
				return Literal{Kind: LiteralString, Text: sb.String()}, nil
			default:
				sb.WriteByte(c)
			}
		}
		return Literal{}, fmt.Errorf("unterminated quoted literal")
	}

	if strings.ContainsFunc(s, unicode.IsSpace) {
		return Literal{}, fmt.Errorf("unquoted literal %q contains whitespace", s)
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return Literal{Kind: LiteralNumber, Text: s, Num: n}, nil
	}
	if b, err := strconv.ParseBool(s); err == nil && (s == "true" || s == "false") {
		return Literal{Kind: LiteralBool, Text: s, Bool: b}, nil
	}
	return Literal{Kind: LiteralString, Text: s}, nil
}

// Evaluate reports whether p holds. A reference to an agent with no recorded
// result, or to a field that is absent, evaluates to false.
func (p Predicate) Evaluate(results map[string]models.AgentResult, execCtx models.ExecutionContext) bool {
	actual, ok := p.resolve(results, execCtx)
	if !ok {
		return false
	}
	return compare(actual, p.Op, p.Literal)
}

func (p Predicate) resolve(results map[string]models.AgentResult, execCtx models.ExecutionContext) (any, bool) {
	if p.Source == ContextSource {
		root, rest, _ := strings.Cut(p.Field, ".")
		v, ok := execCtx.Value(root)
		if !ok {
			return nil, false
		}
		if rest == "" {
			return v, true
		}
		m, isMap := v.(map[string]any)
		if !isMap {
			return nil, false
		}
		return lookupPath(m, rest)
	}

	result, ok := results[p.Source]
	if !ok {
		return nil, false
	}
	if p.Field == ConfidenceField {
		return result.ConfidenceScore, true
	}
	return lookupPath(result.ResultData, p.Field)
}

func compare(actual any, op Operator, lit Literal) bool {
	if lit.Kind == LiteralNumber {
		if n, ok := toFloat(actual); ok {
			return compareNumbers(n, op, lit.Num)
		}
	}

	var equal bool
	switch lit.Kind {
	case LiteralBool:
		b, ok := actual.(bool)
		equal = ok && b == lit.Bool
	default:
		equal = fmt.Sprint(actual) == lit.Text
	}

	switch op {
	case OpEqual:
		return equal
	case OpNotEqual:
		return !equal
	default:
		// Ordering is only defined for numbers.
		return false
	}
}

func compareNumbers(a float64, op Operator, b float64) bool {
	switch op {
	case OpGreater:
		return a > b
	case OpLess:
		return a < b
	case OpGreaterEqual:
		return a >= b
	case OpLessEqual:
		return a <= b
	case OpEqual:
		return a == b
	case OpNotEqual:
		return a != b
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// EvaluateConditions ANDs every predicate in conditions. An empty list holds.
// A malformed predicate makes the whole list false; the parse error is
// returned so callers can report it.
func EvaluateConditions(conditions []string, results map[string]models.AgentResult, execCtx models.ExecutionContext) (bool, error) {
	for _, cond := range conditions {
		pred, err := ParsePredicate(cond)
		if err != nil {
			return false, err
		}
		if !pred.Evaluate(results, execCtx) {
			return false, nil
		}
	}
	return true, nil
}
