package stream

import (
	"bufio"
	"io"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokOpen
	tokClose
	tokComment
)

type token struct {
	kind tokenKind
	text string
}

// lexer splits the text encoding into words, braces and (* comments *).
// Whitespace and ';' separate tokens and are otherwise ignored.
type lexer struct {
	in     *bufio.Reader
	peeked *token
}

func newLexer(in *bufio.Reader) *lexer {
	return &lexer{in: in}
}

func (l *lexer) peek() (token, error) {
	if l.peeked != nil {
		return *l.peeked, nil
	}
	t, err := l.scan()
	if err != nil {
		return t, err
	}
	l.peeked = &t
	return t, nil
}

func (l *lexer) next() (token, error) {
	if l.peeked != nil {
		t := *l.peeked
		l.peeked = nil
		return t, nil
	}
	return l.scan()
}

func (l *lexer) scan() (token, error) {
	for {
		r, _, err := l.in.ReadRune()
		if err == io.EOF {
			return token{kind: tokEOF}, nil
		}
		if err != nil {
			return token{}, err
		}
		switch {
		case unicode.IsSpace(r) || r == ';':
			continue
		case r == '{':
			return token{kind: tokOpen, text: "{"}, nil
		case r == '}':
			return token{kind: tokClose, text: "}"}, nil
		case r == '(':
			next, _, err := l.in.ReadRune()
			if err == nil && next == '*' {
				return l.comment()
			}
			if err == nil {
				_ = l.in.UnreadRune()
			}
			return l.word(r)
		default:
			return l.word(r)
		}
	}
}

func (l *lexer) comment() (token, error) {
	var sb strings.Builder
	prev := rune(0)
	for {
		r, _, err := l.in.ReadRune()
		if err == io.EOF {
			return token{}, malformed("unterminated comment")
		}
		if err != nil {
			return token{}, err
		}
		if prev == '*' && r == ')' {
			text := sb.String()
			return token{kind: tokComment, text: strings.TrimSpace(text[:len(text)-1])}, nil
		}
		sb.WriteRune(r)
		prev = r
	}
}

func (l *lexer) word(first rune) (token, error) {
	var sb strings.Builder
	sb.WriteRune(first)
	for {
		r, _, err := l.in.ReadRune()
		if err == io.EOF {
			break
		}
		if err != nil {
			return token{}, err
		}
		if unicode.IsSpace(r) || r == '{' || r == '}' || r == ';' {
			_ = l.in.UnreadRune()
			break
		}
		sb.WriteRune(r)
	}
	return token{kind: tokWord, text: sb.String()}, nil
}
