package dsl

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tkNumber tokenKind = iota
	tkIdent
	tkOp
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

type line struct {
	no     int
	indent int
	toks   []token
}

var twoCharOps = []string{"+=", "-=", "*=", "<=", ">=", "==", "!="}

const oneCharOps = "+-*/<>=()[],:"

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// lines splits text into non-blank lines and tokenizes each of them.
func lines(text string) ([]line, error) {
	var out []line
	for i, raw := range strings.Split(text, "\n") {
		raw = strings.TrimRight(raw, " \t\r")
		body := strings.TrimLeft(raw, " \t")
		if body == "" {
			continue
		}
		indent := strings.Count(raw[:len(raw)-len(body)], "\t")
		toks, err := lex(body, i+1)
		if err != nil {
			return nil, err
		}
		out = append(out, line{no: i + 1, indent: indent, toks: toks})
	}
	return out, nil
}

func lex(s string, no int) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case isDigit(c):
			j := i
			for j < len(s) && (isDigit(s[j]) || s[j] == '.') {
				j++
			}
			f, err := strconv.ParseFloat(s[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: bad number %q", ErrSyntax, no, s[i:j])
			}
			toks = append(toks, token{kind: tkNumber, text: s[i:j], num: f})
			i = j
		case isIdentStart(c):
			j := i
			for j < len(s) && (isIdentStart(s[j]) || isDigit(s[j]) || s[j] == '.') {
				j++
			}
			name := s[i:j]
			if strings.HasSuffix(name, ".") || strings.Contains(name, "..") {
				return nil, fmt.Errorf("%w: line %d: bad name %q", ErrSyntax, no, name)
			}
			toks = append(toks, token{kind: tkIdent, text: name})
			i = j
		default:
			if i+1 < len(s) {
				two := s[i : i+2]
				matched := false
				for _, op := range twoCharOps {
					if two == op {
						matched = true
						break
					}
				}
				if matched {
					toks = append(toks, token{kind: tkOp, text: two})
					i += 2
					continue
				}
			}
			if strings.IndexByte(oneCharOps, c) >= 0 {
				toks = append(toks, token{kind: tkOp, text: string(c)})
				i++
				continue
			}
			return nil, fmt.Errorf("%w: line %d: unexpected character %q", ErrSyntax, no, c)
		}
	}
	return toks, nil
}
