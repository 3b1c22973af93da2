package units

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Parse errors.
var (
	ErrUndefinedUnit = errors.New("undefined unit")
	ErrMalformed     = errors.New("malformed unit expression")
	ErrIncompatible  = errors.New("incompatible dimensions")
)

// Unit is a parsed unit expression.
type Unit struct {
	Expr   string
	Factor float64
	Offset float64
	Dim    Dimension
}

// ToSI converts a magnitude in u to the coherent SI unit.
func (u Unit) ToSI(v float64) float64 {
	return v*u.Factor + u.Offset
}

// FromSI converts a magnitude in the coherent SI unit to u.
func (u Unit) FromSI(v float64) float64 {
	return (v - u.Offset) / u.Factor
}

const cacheSize = 1024

// parsed expressions are immutable, so the cache can be shared freely.
var cache *lru.Cache[string, Unit]

func init() {
	c, err := lru.New[string, Unit](cacheSize)
	if err != nil {
		panic(err)
	}
	cache = c
}

// Parse parses a unit expression such as "mA/cm^2", "ohm*cm^2" or "mol/l".
// The empty expression is the dimensionless unit 1.
func Parse(expr string) (Unit, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Unit{Expr: "", Factor: 1}, nil
	}
	if u, ok := cache.Get(expr); ok {
		return u, nil
	}

	toks, err := tokenize(expr)
	if err != nil {
		return Unit{}, err
	}
	p := &parser{toks: toks}
	u, err := p.expr()
	if err != nil {
		return Unit{}, err
	}
	if p.pos != len(p.toks) {
		return Unit{}, fmt.Errorf("%w: unexpected %q in %q", ErrMalformed, p.toks[p.pos].text, expr)
	}
	u.Expr = expr
	cache.Add(expr, u)
	return u, nil
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokMul
	tokDiv
	tokPow
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	exp  int // trailing exponent on identifiers like "cm2"
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || r == '_' || r == '%' || r == '°'
}

func tokenize(s string) ([]token, error) {
	var toks []token
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case r == '*':
			if strings.HasPrefix(s[i:], "**") {
				toks = append(toks, token{kind: tokPow, text: "**"})
				i += 2
				continue
			}
			toks = append(toks, token{kind: tokMul, text: "*"})
			i++
		case r == '·':
			toks = append(toks, token{kind: tokMul, text: "·"})
			i += size
		case r == '/':
			toks = append(toks, token{kind: tokDiv, text: "/"})
			i++
		case r == '^':
			toks = append(toks, token{kind: tokPow, text: "^"})
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "("})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")"})
			i++
		case r == '-' || r == '+' || unicode.IsDigit(r):
			j := i + 1
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			toks = append(toks, token{kind: tokNumber, text: s[i:j]})
			i = j
		case isIdentRune(r):
			j := i
			for j < len(s) {
				rr, sz := utf8.DecodeRuneInString(s[j:])
				if !isIdentRune(rr) {
					break
				}
				j += sz
			}
			tok := token{kind: tokIdent, text: s[i:j], exp: 1}
			k := j
			for k < len(s) && s[k] >= '0' && s[k] <= '9' {
				k++
			}
			if k > j {
				n, err := strconv.Atoi(s[j:k])
				if err != nil {
					return nil, fmt.Errorf("%w: %q", ErrMalformed, s)
				}
				tok.exp = n
			}
			toks = append(toks, tok)
			i = k
		default:
			return nil, fmt.Errorf("%w: unexpected %q in %q", ErrMalformed, r, s)
		}
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

// expr := term { ("*" | "/" | juxtaposition) term }
func (p *parser) expr() (Unit, error) {
	u, err := p.term()
	if err != nil {
		return Unit{}, err
	}
	for {
		t, ok := p.peek()
		if !ok {
			return u, nil
		}
		switch t.kind {
		case tokMul:
			p.pos++
			rhs, err := p.term()
			if err != nil {
				return Unit{}, err
			}
			if u, err = mul(u, rhs); err != nil {
				return Unit{}, err
			}
		case tokDiv:
			p.pos++
			rhs, err := p.term()
			if err != nil {
				return Unit{}, err
			}
			if u, err = div(u, rhs); err != nil {
				return Unit{}, err
			}
		case tokIdent, tokLParen, tokNumber:
			rhs, err := p.term()
			if err != nil {
				return Unit{}, err
			}
			if u, err = mul(u, rhs); err != nil {
				return Unit{}, err
			}
		default:
			return u, nil
		}
	}
}

// term := primary [ ("^" | "**") integer ]
func (p *parser) term() (Unit, error) {
	u, err := p.primary()
	if err != nil {
		return Unit{}, err
	}
	t, ok := p.peek()
	if !ok || t.kind != tokPow {
		return u, nil
	}
	p.pos++
	n, ok := p.peek()
	if !ok || n.kind != tokNumber {
		return Unit{}, fmt.Errorf("%w: exponent must be an integer", ErrMalformed)
	}
	p.pos++
	exp, err := strconv.Atoi(n.text)
	if err != nil {
		return Unit{}, fmt.Errorf("%w: bad exponent %q", ErrMalformed, n.text)
	}
	return pow(u, exp)
}

func (p *parser) primary() (Unit, error) {
	t, ok := p.peek()
	if !ok {
		return Unit{}, fmt.Errorf("%w: unexpected end of expression", ErrMalformed)
	}
	p.pos++
	switch t.kind {
	case tokIdent:
		def, found := lookup(t.text)
		if !found {
			return Unit{}, fmt.Errorf("%w: %q", ErrUndefinedUnit, t.text)
		}
		u := Unit{Factor: def.factor, Offset: def.offset, Dim: def.dim}
		if t.exp != 1 {
			return pow(u, t.exp)
		}
		return u, nil
	case tokNumber:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil || v <= 0 {
			return Unit{}, fmt.Errorf("%w: bad factor %q", ErrMalformed, t.text)
		}
		return Unit{Factor: v}, nil
	case tokLParen:
		u, err := p.expr()
		if err != nil {
			return Unit{}, err
		}
		closing, ok := p.peek()
		if !ok || closing.kind != tokRParen {
			return Unit{}, fmt.Errorf("%w: missing )", ErrMalformed)
		}
		p.pos++
		u.Offset = 0
		return u, nil
	default:
		return Unit{}, fmt.Errorf("%w: unexpected %q", ErrMalformed, t.text)
	}
}

// maxExponent bounds a single power; dimension exponents are int8.
const maxExponent = math.MaxInt8

// Offsets only survive for a lone unit; in compound expressions an offset
// unit stands for a temperature difference.
func mul(a, b Unit) (Unit, error) {
	return combine(a, b, 1)
}

func div(a, b Unit) (Unit, error) {
	return combine(a, b, -1)
}

func combine(a, b Unit, sign int) (Unit, error) {
	dim, ok := a.Dim.scaled(b.Dim, sign)
	if !ok {
		return Unit{}, fmt.Errorf("%w: exponent out of range", ErrMalformed)
	}
	factor := a.Factor * b.Factor
	if sign < 0 {
		factor = a.Factor / b.Factor
	}
	return finite(Unit{Factor: factor, Dim: dim})
}

func pow(a Unit, n int) (Unit, error) {
	if n < -maxExponent || n > maxExponent {
		return Unit{}, fmt.Errorf("%w: exponent %d out of range", ErrMalformed, n)
	}
	dim, ok := Dimensionless.scaled(a.Dim, n)
	if !ok {
		return Unit{}, fmt.Errorf("%w: exponent %d out of range", ErrMalformed, n)
	}
	return finite(Unit{Factor: math.Pow(a.Factor, float64(n)), Dim: dim})
}

// finite rejects factors that overflow or underflow float64.
func finite(u Unit) (Unit, error) {
	if u.Factor == 0 || math.IsInf(u.Factor, 0) || math.IsNaN(u.Factor) {
		return Unit{}, fmt.Errorf("%w: scale factor out of range", ErrMalformed)
	}
	return u, nil
}
