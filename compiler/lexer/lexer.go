// Package lexer tokenizes IceType field-type expressions.
//
// The lexer is pure and total: it never fails. Runes it does not
// recognize are emitted as Illegal tokens and rejected later by the
// parser, which can attach a position and an expectation to the error.
package lexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind classifies a token.
type Kind uint8

// Token kinds.
const (
	// Illegal marks a rune the lexer does not recognize.
	Illegal Kind = iota
	// Ident is a bare identifier: a type name, an entity reference
	// (possibly dotted, "Entity.field"), or a number inside parameter
	// parentheses.
	Ident
	// Modifier is one of the marks "!", "?" or "#".
	Modifier
	// LBracket and RBracket are "[" and "]".
	LBracket
	RBracket
	// LParen and RParen are "(" and ")".
	LParen
	RParen
	// ArrowTo is "->", ArrowFrom is "<-".
	ArrowTo
	ArrowFrom
	// Equals is "=". Everything after it is captured as one Expr token.
	Equals
	// Comma separates precision from scale.
	Comma
	// Expr is the verbatim default expression following "=".
	Expr
)

// String returns the name of the kind, used in error expectations.
func (k Kind) String() string {
	switch k {
	case Ident:
		return "identifier"
	case Modifier:
		return "modifier"
	case LBracket:
		return "'['"
	case RBracket:
		return "']'"
	case LParen:
		return "'('"
	case RParen:
		return "')'"
	case ArrowTo:
		return "'->'"
	case ArrowFrom:
		return "'<-'"
	case Equals:
		return "'='"
	case Comma:
		return "','"
	case Expr:
		return "expression"
	default:
		return "illegal"
	}
}

// Token is one lexical unit of a field-type expression. Tokens live
// only for the duration of a single parse call.
type Token struct {
	Kind Kind
	Text string
	// Pos is the byte offset of the token in the input.
	Pos int
}

// String renders the token for diagnostics.
func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d", t.Kind, t.Text, t.Pos)
}

// Tokenize splits a field-type expression into tokens. The result
// always covers the whole input: unknown runes become Illegal tokens
// instead of being dropped, so the parser can report their position.
func Tokenize(text string) []Token {
	var tokens []Token
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '!' || c == '?' || c == '#':
			tokens = append(tokens, Token{Kind: Modifier, Text: string(c), Pos: i})
			i++
		case c == '[':
			tokens = append(tokens, Token{Kind: LBracket, Text: "[", Pos: i})
			i++
		case c == ']':
			tokens = append(tokens, Token{Kind: RBracket, Text: "]", Pos: i})
			i++
		case c == '(':
			tokens = append(tokens, Token{Kind: LParen, Text: "(", Pos: i})
			i++
		case c == ')':
			tokens = append(tokens, Token{Kind: RParen, Text: ")", Pos: i})
			i++
		case c == ',':
			tokens = append(tokens, Token{Kind: Comma, Text: ",", Pos: i})
			i++
		case c == '-' && i+1 < len(text) && text[i+1] == '>':
			tokens = append(tokens, Token{Kind: ArrowTo, Text: "->", Pos: i})
			i += 2
		case c == '<' && i+1 < len(text) && text[i+1] == '-':
			tokens = append(tokens, Token{Kind: ArrowFrom, Text: "<-", Pos: i})
			i += 2
		case c == '=':
			tokens = append(tokens, Token{Kind: Equals, Text: "=", Pos: i})
			i++
			// The default expression runs to the end of the input and
			// is captured verbatim, never re-tokenized.
			expr := strings.TrimSpace(text[i:])
			if expr != "" {
				pos := i + strings.Index(text[i:], expr[:1])
				tokens = append(tokens, Token{Kind: Expr, Text: expr, Pos: pos})
			}
			return tokens
		default:
			// Decode a full rune: identifiers may carry multi-byte
			// letters, and a stray byte must not be read as a letter.
			r, size := utf8.DecodeRuneInString(text[i:])
			if !isIdentRune(r) || (r == utf8.RuneError && size == 1) {
				tokens = append(tokens, Token{Kind: Illegal, Text: text[i : i+size], Pos: i})
				i += size
				continue
			}
			start := i
			for i < len(text) {
				r, size := utf8.DecodeRuneInString(text[i:])
				if !isIdentRune(r) || (r == utf8.RuneError && size == 1) {
					break
				}
				i += size
			}
			tokens = append(tokens, Token{Kind: Ident, Text: text[start:i], Pos: start})
		}
	}
	return tokens
}

// isIdentRune reports whether r may appear in an identifier. Dots are
// included so that inverse-relation targets ("Entity.field") lex as a
// single token; the parser splits them.
func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.'
}
