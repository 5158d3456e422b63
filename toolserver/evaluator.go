package toolserver

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"cot-calculator/utils"
)

// Evaluate computes an arithmetic expression. It supports + - * / % and
// power (^ or **), unary signs, parentheses, the constants pi and e, and the
// functions sqrt, sin, cos, tan, log, log10, exp, abs, floor, ceil and round.
// Nothing is executed beyond this grammar.
func Evaluate(expr string) (float64, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	if len(toks) == 0 {
		return 0, fmt.Errorf("empty expression")
	}

	p := &exprParser{toks: toks}
	v, err := p.parseSum()
	if err != nil {
		return 0, err
	}
	if p.pos < len(p.toks) {
		return 0, fmt.Errorf("unexpected %q at position %d", p.toks[p.pos].text, p.toks[p.pos].at)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("result is not a finite number")
	}
	return v, nil
}

// FormatResult renders integral values without a fraction and everything else
// with ten significant digits.
func FormatResult(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'g', 10, 64)
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	num  float64
	at   int
}

func tokenize(s string) ([]token, error) {
	var toks []token
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case unicode.IsSpace(r):
			i += size

		case isDigit(s[i]) || s[i] == '.':
			start := i
			for i < len(s) && (isDigit(s[i]) || s[i] == '.' || s[i] == ',') {
				i++
			}
			// Scientific notation: 1e10, 2.5E-3
			if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
				j := i + 1
				if j < len(s) && (s[j] == '+' || s[j] == '-') {
					j++
				}
				if j < len(s) && isDigit(s[j]) {
					for j < len(s) && isDigit(s[j]) {
						j++
					}
					i = j
				}
			}
			literal, ok := utils.StripThousands(s[start:i])
			if !ok {
				return nil, fmt.Errorf("invalid number %q", s[start:i])
			}
			n, err := strconv.ParseFloat(literal, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q", s[start:i])
			}
			toks = append(toks, token{kind: tokNumber, text: s[start:i], num: n, at: start})

		case isLetter(s[i]):
			start := i
			for i < len(s) && (isLetter(s[i]) || isDigit(s[i])) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: strings.ToLower(s[start:i]), at: start})

		case r == '*' && i+1 < len(s) && s[i+1] == '*':
			toks = append(toks, token{kind: tokOp, text: "^", at: i})
			i += 2

		case strings.ContainsRune("+-*/%^", r):
			toks = append(toks, token{kind: tokOp, text: string(r), at: i})
			i++

		case r == '×':
			toks = append(toks, token{kind: tokOp, text: "*", at: i})
			i += size

		case r == '÷':
			toks = append(toks, token{kind: tokOp, text: "/", at: i})
			i += size

		case r == '(' || r == '[':
			toks = append(toks, token{kind: tokLParen, text: "(", at: i})
			i++

		case r == ')' || r == ']':
			toks = append(toks, token{kind: tokRParen, text: ")", at: i})
			i++

		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", r, i)
		}
	}
	return toks, nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_'
}

var functions = map[string]func(float64) float64{
	"sqrt":  math.Sqrt,
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"log":   math.Log,
	"ln":    math.Log,
	"log10": math.Log10,
	"exp":   math.Exp,
	"abs":   math.Abs,
	"floor": math.Floor,
	"ceil":  math.Ceil,
	"round": math.Round,
}

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

type exprParser struct {
	toks []token
	pos  int
}

func (p *exprParser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *exprParser) peekOp(ops string) (string, bool) {
	t, ok := p.peek()
	if !ok || t.kind != tokOp || !strings.Contains(ops, t.text) {
		return "", false
	}
	return t.text, true
}

// sum := product (('+' | '-') product)*
func (p *exprParser) parseSum() (float64, error) {
	left, err := p.parseProduct()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peekOp("+-")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseProduct()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			left += right
		} else {
			left -= right
		}
	}
}

// product := unary (('*' | '/' | '%') unary)*
func (p *exprParser) parseProduct() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peekOp("*/%")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		switch op {
		case "*":
			left *= right
		case "/":
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		case "%":
			if right == 0 {
				return 0, fmt.Errorf("modulo by zero")
			}
			left = math.Mod(left, right)
		}
	}
}

// unary := ('+' | '-') unary | power
func (p *exprParser) parseUnary() (float64, error) {
	if op, ok := p.peekOp("+-"); ok {
		p.pos++
		v, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		if op == "-" {
			return -v, nil
		}
		return v, nil
	}
	return p.parsePower()
}

// power := primary ('^' unary)?
func (p *exprParser) parsePower() (float64, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}
	if _, ok := p.peekOp("^"); ok {
		p.pos++
		exp, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

// primary := number | constant | function '(' sum ')' | '(' sum ')'
func (p *exprParser) parsePrimary() (float64, error) {
	t, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("unexpected end of expression")
	}

	switch t.kind {
	case tokNumber:
		p.pos++
		return t.num, nil

	case tokLParen:
		p.pos++
		v, err := p.parseSum()
		if err != nil {
			return 0, err
		}
		if err := p.expectRParen(); err != nil {
			return 0, err
		}
		return v, nil

	case tokIdent:
		p.pos++
		if fn, ok := functions[t.text]; ok {
			next, ok := p.peek()
			if !ok || next.kind != tokLParen {
				return 0, fmt.Errorf("function %s requires parentheses", t.text)
			}
			p.pos++
			arg, err := p.parseSum()
			if err != nil {
				return 0, err
			}
			if err := p.expectRParen(); err != nil {
				return 0, err
			}
			return fn(arg), nil
		}
		if c, ok := constants[t.text]; ok {
			return c, nil
		}
		return 0, fmt.Errorf("unknown identifier %q", t.text)

	default:
		return 0, fmt.Errorf("unexpected %q at position %d", t.text, t.at)
	}
}

func (p *exprParser) expectRParen() error {
	t, ok := p.peek()
	if !ok || t.kind != tokRParen {
		return fmt.Errorf("mismatched parentheses")
	}
	p.pos++
	return nil
}
