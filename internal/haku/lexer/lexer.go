// Package lexer turns haku brush source text into a stream of tokens.
package lexer

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/liquidev/rakugaki/internal/haku/token"
)

// ASCII classification tables, built once so the scan loop never branches
// on character class.
var (
	isWhitespace [128]bool
	isDigit      [128]bool
	isIdentStart [128]bool
	isIdentPart  [128]bool
	isHex        [128]bool
)

func init() {
	for i := 0; i < 128; i++ {
		ch := byte(i)
		isWhitespace[i] = ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' || ch == '\f'
		isDigit[i] = '0' <= ch && ch <= '9'
		isIdentStart[i] = ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_'
		isIdentPart[i] = isIdentStart[i] || isDigit[i]
		isHex[i] = isDigit[i] || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
	}
}

// Diagnostic is a lexical error: an illegal character or malformed literal.
type Diagnostic struct {
	Span    token.Span
	Message string
}

// Lexer is a single-pass scanner over a complete, already-read source
// string. Brush sources are capped (`max_source_code_len`) well below any
// size where streaming would matter, so reading it whole up front keeps the
// scan loop simple.
type Lexer struct {
	src    string
	pos    int // byte offset of the next unread byte
	logger *slog.Logger

	diagnostics []Diagnostic
}

// New creates a Lexer over src. Debug tracing is enabled by setting
// RAKUGAKI_DEBUG_LEXER in the environment, same convention the teacher
// pipeline uses for its own lexer trace.
func New(src string) *Lexer {
	level := slog.LevelInfo
	if os.Getenv("RAKUGAKI_DEBUG_LEXER") != "" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return &Lexer{src: src, logger: logger}
}

// Diagnostics returns the lexical errors collected so far.
func (l *Lexer) Diagnostics() []Diagnostic { return l.diagnostics }

func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(offset int) byte {
	p := l.pos + offset
	if p >= len(l.src) {
		return 0
	}
	return l.src[p]
}

func (l *Lexer) advance() byte {
	ch := l.src[l.pos]
	l.pos++
	return ch
}

func (l *Lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		if ch < 128 && isWhitespace[ch] {
			l.pos++
			continue
		}
		if ch == '-' && l.peekAt(1) == '-' {
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
			continue
		}
		break
	}
}

// Next scans and returns the next token. At end of input it returns an EOF
// token forever; callers should stop on seeing it.
func (l *Lexer) Next() token.Token {
	l.skipWhitespaceAndComments()

	start := l.pos
	if l.pos >= len(l.src) {
		return token.Token{Kind: token.EOF, Span: token.Span{Start: start, End: start}}
	}

	ch := l.advance()

	switch {
	case ch == '#':
		return l.scanColor(start)
	case ch < 128 && isDigit[ch]:
		l.pos--
		return l.scanNumber(start)
	case ch < 128 && isIdentStart[ch]:
		l.pos--
		return l.scanIdent(start)
	case ch == '-' && l.pos < len(l.src) && l.src[l.pos] == '>':
		l.pos++
		return token.Token{Kind: token.Arrow, Span: token.Span{Start: start, End: l.pos}}
	case ch == '<':
		return token.Token{Kind: token.Lt, Span: token.Span{Start: start, End: l.pos}}
	case ch == '>':
		return token.Token{Kind: token.Gt, Span: token.Span{Start: start, End: l.pos}}
	case ch == '=':
		return token.Token{Kind: token.Equals, Span: token.Span{Start: start, End: l.pos}}
	case ch == '-':
		// A '-' directly after '(' and directly before a digit starts a
		// negative number literal, so `(-4)` is the number -4; any other
		// '-' is its own MINUS token.
		if start > 0 && l.src[start-1] == '(' && l.pos < len(l.src) && l.src[l.pos] < 128 && isDigit[l.src[l.pos]] {
			return l.scanNumber(start)
		}
		return token.Token{Kind: token.Minus, Span: token.Span{Start: start, End: l.pos}}
	}

	if ch < 128 {
		if kind, ok := token.SingleCharTokens[ch]; ok {
			return token.Token{Kind: kind, Span: token.Span{Start: start, End: l.pos}}
		}
	}

	l.diagnostics = append(l.diagnostics, Diagnostic{
		Span:    token.Span{Start: start, End: l.pos},
		Message: "unexpected character " + strconv.QuoteRune(rune(ch)),
	})
	return token.Token{Kind: token.Illegal, Span: token.Span{Start: start, End: l.pos}}
}

func (l *Lexer) scanIdent(start int) token.Token {
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		if ch >= 128 || !isIdentPart[ch] {
			break
		}
		l.pos++
	}
	text := l.src[start:l.pos]
	span := token.Span{Start: start, End: l.pos}
	if kind, ok := token.Keywords[text]; ok {
		return token.Token{Kind: kind, Span: span, Text: text}
	}
	return token.Token{Kind: token.Ident, Span: span, Text: text}
}

func (l *Lexer) scanNumber(start int) token.Token {
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		if ch < 128 && isDigit[ch] {
			l.pos++
			continue
		}
		break
	}
	if l.pos < len(l.src) && l.src[l.pos] == '.' && l.pos+1 < len(l.src) && isDigit[l.src[l.pos+1]] {
		l.pos++
		for l.pos < len(l.src) && isDigit[l.src[l.pos]] {
			l.pos++
		}
	}
	text := l.src[start:l.pos]
	span := token.Span{Start: start, End: l.pos}
	val, err := strconv.ParseFloat(text, 64)
	if err != nil {
		l.diagnostics = append(l.diagnostics, Diagnostic{Span: span, Message: "malformed number literal " + text})
	}
	return token.Token{Kind: token.Number, Span: span, Text: text, Num: val}
}

// scanColor scans the hex digits following a consumed '#' and decodes the
// #RGB / #RGBA / #RRGGBB / #RRGGBBAA forms into 0..=1 floats.
func (l *Lexer) scanColor(hashPos int) token.Token {
	digitsStart := l.pos
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		if ch >= 128 || !isHex[ch] {
			break
		}
		l.pos++
	}
	digits := l.src[digitsStart:l.pos]
	span := token.Span{Start: hashPos, End: l.pos}

	var rgba [4]float64
	ok := true
	switch len(digits) {
	case 3:
		rgba = expandNibbles(digits, "f")
	case 4:
		rgba = expandNibbles(digits, "")
	case 6:
		rgba = expandBytes(digits, "ff")
	case 8:
		rgba = expandBytes(digits, "")
	default:
		ok = false
	}
	if !ok {
		l.diagnostics = append(l.diagnostics, Diagnostic{
			Span:    span,
			Message: "invalid color literal #" + digits + ": expected 3, 4, 6, or 8 hex digits",
		})
		return token.Token{Kind: token.Illegal, Span: span, Text: "#" + digits}
	}
	return token.Token{Kind: token.Color, Span: span, Text: "#" + digits, Color: rgba}
}

func expandNibbles(digits, alphaDefault string) [4]float64 {
	full := ""
	for _, c := range digits {
		full += string(c) + string(c)
	}
	if len(digits) == 3 {
		full += alphaDefault + alphaDefault
	}
	return expandBytes(full, "")
}

func expandBytes(hexStr, suffixIfShort string) [4]float64 {
	if len(hexStr) == 6 {
		hexStr += suffixIfShort
	}
	var out [4]float64
	for i := 0; i < 4; i++ {
		b, _ := strconv.ParseUint(strings.ToLower(hexStr[i*2:i*2+2]), 16, 8)
		out[i] = float64(b) / 255.0
	}
	return out
}
