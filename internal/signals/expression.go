package signals

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	apperrors "tremor/internal/errors"
)

// Evaluate computes a transform expression against a flat namespace of
// numeric fields. Only arithmetic is allowed: + - * /, unary minus,
// parentheses, numeric literals and field identifiers. Anything else is a
// parse error. This is deliberately not a general-purpose evaluator.
func Evaluate(expression string, fields map[string]float64) (float64, error) {
	p := &exprParser{input: expression, fields: fields}
	value, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return 0, apperrors.NewParsingError(
			fmt.Sprintf("unexpected character %q at position %d", p.input[p.pos], p.pos), nil)
	}
	return value, nil
}

// ValidateExpression checks syntax without requiring field values. Unknown
// identifiers are accepted here; they only fail at evaluation time against a
// concrete event.
func ValidateExpression(expression string) error {
	p := &exprParser{input: expression, lenient: true}
	if _, err := p.parseExpr(); err != nil {
		return err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return apperrors.NewParsingError(
			fmt.Sprintf("unexpected character %q at position %d", p.input[p.pos], p.pos), nil)
	}
	return nil
}

type exprParser struct {
	input   string
	pos     int
	fields  map[string]float64
	lenient bool
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	if p.pos < len(p.input) {
		return p.input[p.pos]
	}
	return 0
}

// parseExpr handles + and - at the lowest precedence.
func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

// parseTerm handles * and /.
func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '*':
			p.pos++
			right, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			left *= right
		case '/':
			p.pos++
			right, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, apperrors.NewParsingError("division by zero in expression", nil)
			}
			left /= right
		default:
			return left, nil
		}
	}
}

// parseFactor handles unary minus, parentheses, literals and identifiers.
func (p *exprParser) parseFactor() (float64, error) {
	p.skipSpace()
	switch {
	case p.peek() == '-':
		p.pos++
		v, err := p.parseFactor()
		return -v, err
	case p.peek() == '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return 0, apperrors.NewParsingError("missing closing parenthesis", nil)
		}
		p.pos++
		return v, nil
	case p.pos < len(p.input) && (unicode.IsDigit(rune(p.input[p.pos])) || p.input[p.pos] == '.'):
		return p.parseNumber()
	case p.pos < len(p.input) && isIdentStart(rune(p.input[p.pos])):
		return p.parseIdentifier()
	default:
		return 0, apperrors.NewParsingError(
			fmt.Sprintf("unexpected input at position %d in %q", p.pos, p.input), nil)
	}
}

func (p *exprParser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) && (unicode.IsDigit(rune(p.input[p.pos])) || p.input[p.pos] == '.') {
		p.pos++
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, apperrors.NewParsingError(
			fmt.Sprintf("invalid number %q", p.input[start:p.pos]), err)
	}
	return v, nil
}

func (p *exprParser) parseIdentifier() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) && isIdentPart(rune(p.input[p.pos])) {
		p.pos++
	}
	name := p.input[start:p.pos]
	value, ok := p.fields[name]
	if !ok && p.lenient {
		return 1, nil
	}
	if !ok {
		known := make([]string, 0, len(p.fields))
		for k := range p.fields {
			known = append(known, k)
		}
		return 0, apperrors.NewParsingError(
			fmt.Sprintf("unknown field %q (have: %s)", name, strings.Join(known, ", ")), nil)
	}
	return value, nil
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
