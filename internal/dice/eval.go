package dice

import (
	"errors"
	"fmt"
	"strconv"
)

// The arithmetic evaluator accepts only numbers, + - * /, unary sign and
// parentheses. Anything else (identifiers, calls, other brackets) is rejected
// with an error instead of being evaluated. Division keeps fractional
// precision internally; the final value alone is truncated to an integer, so
// "10/4+1" is 3 (2.5+1 = 3.5) rather than 3 from per-step flooring.
//
// Grammar:
//
//	expr   := term (('+' | '-') term)*
//	term   := factor (('*' | '/') factor)*
//	factor := ['+'|'-'] factor | number | '(' expr ')'

type tokenKind int

const (
	tokenNumber tokenKind = iota
	tokenPlus
	tokenMinus
	tokenStar
	tokenSlash
	tokenLParen
	tokenRParen
	tokenEOF
)

type token struct {
	kind  tokenKind
	value float64 // set for tokenNumber
	text  string
	pos   int
}

// node is the tagged expression tree: literal, unary or binary.
type node interface{}

type literal struct {
	value float64
}

type unary struct {
	op      tokenKind // tokenPlus or tokenMinus
	operand node
}

type binary struct {
	op          tokenKind
	left, right node
}

// evalArithmetic parses and evaluates an arithmetic-only expression.
// Truncation to int happens exactly once, on the final value.
func evalArithmetic(expr string) (int, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return 0, err
	}

	p := &parser{tokens: tokens}
	root, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if tok := p.peek(); tok.kind != tokenEOF {
		return 0, fmt.Errorf("unexpected '%s' at position %d", tok.text, tok.pos)
	}

	value, err := evalNode(root)
	if err != nil {
		return 0, err
	}

	return int(value), nil
}

// tokenize splits the expression into number and operator tokens.
// Any character outside the allowed set fails here, which is what keeps
// identifiers, calls and stray brackets out of the evaluator entirely.
func tokenize(expr string) ([]token, error) {
	var tokens []token

	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c >= '0' && c <= '9' || c == '.':
			start := i
			seenDot := false
			for i < len(expr) && (expr[i] >= '0' && expr[i] <= '9' || expr[i] == '.') {
				if expr[i] == '.' {
					if seenDot {
						return nil, fmt.Errorf("malformed number at position %d", start)
					}
					seenDot = true
				}
				i++
			}
			text := expr[start:i]
			value, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("malformed number '%s' at position %d", text, start)
			}
			tokens = append(tokens, token{kind: tokenNumber, value: value, text: text, pos: start})
		case c == '+':
			tokens = append(tokens, token{kind: tokenPlus, text: "+", pos: i})
			i++
		case c == '-':
			tokens = append(tokens, token{kind: tokenMinus, text: "-", pos: i})
			i++
		case c == '*':
			tokens = append(tokens, token{kind: tokenStar, text: "*", pos: i})
			i++
		case c == '/':
			tokens = append(tokens, token{kind: tokenSlash, text: "/", pos: i})
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokenLParen, text: "(", pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokenRParen, text: ")", pos: i})
			i++
		default:
			return nil, fmt.Errorf("unsupported character '%c' at position %d", c, i)
		}
	}

	tokens = append(tokens, token{kind: tokenEOF, text: "end of expression", pos: len(expr)})
	return tokens, nil
}

// parser is a recursive-descent parser over the token stream.
type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	for {
		op := p.peek()
		if op.kind != tokenPlus && op.kind != tokenMinus {
			return left, nil
		}
		p.next()

		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binary{op: op.kind, left: left, right: right}
	}
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}

	for {
		op := p.peek()
		if op.kind != tokenStar && op.kind != tokenSlash {
			return left, nil
		}
		p.next()

		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = binary{op: op.kind, left: left, right: right}
	}
}

func (p *parser) parseFactor() (node, error) {
	tok := p.next()

	switch tok.kind {
	case tokenPlus, tokenMinus:
		operand, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return unary{op: tok.kind, operand: operand}, nil

	case tokenNumber:
		return literal{value: tok.value}, nil

	case tokenLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokenRParen {
			return nil, fmt.Errorf("expected ')' but found '%s' at position %d", closing.text, closing.pos)
		}
		return inner, nil

	case tokenEOF:
		return nil, errors.New("expression ends where a number was expected")

	default:
		return nil, fmt.Errorf("unexpected '%s' at position %d", tok.text, tok.pos)
	}
}

// evalNode walks the tree and computes its value in float64.
func evalNode(n node) (float64, error) {
	switch v := n.(type) {
	case literal:
		return v.value, nil

	case unary:
		operand, err := evalNode(v.operand)
		if err != nil {
			return 0, err
		}
		if v.op == tokenMinus {
			return -operand, nil
		}
		return operand, nil

	case binary:
		left, err := evalNode(v.left)
		if err != nil {
			return 0, err
		}
		right, err := evalNode(v.right)
		if err != nil {
			return 0, err
		}
		switch v.op {
		case tokenPlus:
			return left + right, nil
		case tokenMinus:
			return left - right, nil
		case tokenStar:
			return left * right, nil
		case tokenSlash:
			if right == 0 {
				return 0, errors.New("division by zero")
			}
			return left / right, nil
		}
	}

	// Unreachable: the parser only builds the node types above.
	return 0, errors.New("invalid expression")
}
