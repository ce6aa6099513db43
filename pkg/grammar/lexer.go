// Package grammar turns recipe text into directive invocations.
//
// A recipe is a sequence of directives separated by newlines or ';'. Each
// directive starts with its name and is followed by arguments:
//
//	rename :fname :lname;
//	text-distance cosine string1 string2 cosine
//	parse-as-csv :body ',' true exp: { type == '002' }
//	drop [:tmp, :scratch]
//	parse-as-csv :body ';' prop: { lazy-quotes = true }
//
// Blank lines and lines starting with // are ignored. Expression blocks are
// matched by delimiter only; their payload is passed through verbatim.
package grammar

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/leapstack-labs/wrangle/pkg/token"
)

// PropertiesLabel is the block label that produces a PROPERTIES token
// instead of an EXPRESSION.
const PropertiesLabel = "prop"

// Parse tokenizes recipe text into directive token groups.
// Lexing continues past a failing directive so that every syntax error in the
// recipe is reported in one pass; errors are returned in source order.
func Parse(text string) ([]token.Group, []error) {
	return NewLexer(text).Groups()
}

// Lexer tokenizes recipe text.
type Lexer struct {
	input      string
	pos        int // current position in input
	line       int // current line number (1-based)
	col        int // current column number (1-based)
	lastLine   int // line at start of current token
	lastCol    int // column at start of current token
	lastOffset int // offset at start of current token
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input: input,
		pos:   0,
		line:  1,
		col:   1,
	}
}

// Groups scans the whole input.
func (l *Lexer) Groups() ([]token.Group, []error) {
	var groups []token.Group
	var errs []error

	for {
		l.skipBlank()
		if l.eof() {
			break
		}

		group, err := l.scanDirective()
		if err != nil {
			errs = append(errs, err)
			l.skipLine()
			continue
		}
		groups = append(groups, group)
	}

	return groups, errs
}

// scanDirective scans one directive name and its arguments.
func (l *Lexer) scanDirective() (token.Group, error) {
	l.markStart()
	start := l.pos
	startPos := l.startPosition()

	name := l.scanWord()
	if name == "" || !isDirectiveName(name) {
		return token.Group{}, NewSyntaxError(startPos, l.lineText(startPos.Line), "expected directive name")
	}
	if !l.eof() && l.peek() == ':' {
		return token.Group{}, NewSyntaxErrorf(startPos, l.lineText(startPos.Line), "expected directive name, found label %q", name)
	}

	group := token.Group{
		Directive: name,
		Line:      startPos.Line,
		Pos:       startPos,
	}

	end := l.pos
	for {
		l.skipSpace()
		if l.eof() || l.peek() == '\n' || l.peek() == ';' {
			break
		}
		if l.matchString("//") {
			l.skipLine()
			break
		}
		if l.peek() == ',' {
			l.advance()
			continue
		}

		tok, err := l.scanArg()
		if err != nil {
			return token.Group{}, err
		}
		group.Tokens = append(group.Tokens, tok)
		end = l.pos
	}

	group.Source = strings.TrimSpace(l.input[start:end])
	if !l.eof() && l.peek() == ';' {
		l.advance()
	}
	return group, nil
}

// scanArg scans a single argument token.
func (l *Lexer) scanArg() (token.Token, error) {
	r := l.peek()
	switch {
	case r == ':':
		return l.scanColumn()
	case r == '\'' || r == '"':
		return l.scanText()
	case r == '{':
		return l.scanBlock("")
	case r == '[':
		return l.scanList()
	case isWordRune(r):
		return l.scanWordToken()
	default:
		l.markStart()
		return token.Token{}, NewSyntaxErrorf(l.startPosition(), l.lineText(l.line), "unexpected %q", r)
	}
}

// scanColumn scans a :column reference.
func (l *Lexer) scanColumn() (token.Token, error) {
	l.markStart()
	pos := l.startPosition()

	// Skip :
	l.advance()

	name := l.scanWord()
	if name == "" {
		return token.Token{}, NewSyntaxError(pos, l.lineText(pos.Line), "expected column name after ':'")
	}
	return token.NewColumn(name, pos), nil
}

// scanText scans a quoted string. Strings do not span lines.
func (l *Lexer) scanText() (token.Token, error) {
	l.markStart()
	pos := l.startPosition()
	start := l.pos

	value, ok := l.scanQuoted(false)
	if !ok {
		return token.Token{}, NewSyntaxError(pos, l.lineText(pos.Line), "unterminated string")
	}
	return token.NewText(value, l.input[start:l.pos], pos), nil
}

// scanQuoted consumes a quoted string starting at the current quote rune and
// returns its unescaped value. multiline allows newlines inside the quotes.
func (l *Lexer) scanQuoted(multiline bool) (string, bool) {
	quote := l.peek()
	l.advance()

	var sb strings.Builder
	for !l.eof() {
		r := l.peek()
		switch {
		case r == quote:
			l.advance()
			return sb.String(), true
		case r == '\n' && !multiline:
			return "", false
		case r == '\\':
			l.advance()
			if l.eof() {
				return "", false
			}
			sb.WriteRune(unescape(l.peek()))
			l.advance()
		default:
			sb.WriteRune(r)
			l.advance()
		}
	}
	return "", false
}

// scanBlock scans a { ... } block. Braces inside quoted strings are ignored
// and blocks may span lines. The label "prop" yields PROPERTIES.
func (l *Lexer) scanBlock(label string) (token.Token, error) {
	l.markStart()
	pos := l.startPosition()
	start := l.pos

	if label == PropertiesLabel {
		return l.scanProperties(label, pos, start)
	}

	// Skip {
	l.advance()
	payloadStart := l.pos
	depth := 0

	for !l.eof() {
		r := l.peek()
		switch r {
		case '\'', '"':
			if _, ok := l.scanQuoted(true); !ok {
				return token.Token{}, NewSyntaxError(pos, l.lineText(pos.Line), "unterminated string in expression block")
			}
			continue
		case '{':
			depth++
		case '}':
			if depth == 0 {
				payload := strings.TrimSpace(l.input[payloadStart:l.pos])
				l.advance()
				return token.NewExpression(payload, label, l.input[start:l.pos], pos), nil
			}
			depth--
		}
		l.advance()
	}

	return token.Token{}, NewSyntaxError(pos, l.lineText(pos.Line), "unterminated expression block: missing '}'")
}

// scanProperties scans `{ key = value, ... }` after a prop: label.
func (l *Lexer) scanProperties(label string, pos token.Position, start int) (token.Token, error) {
	// Skip {
	l.advance()
	props := make(map[string]token.Token)

	for {
		l.skipWhitespace()
		if l.eof() {
			return token.Token{}, NewSyntaxError(pos, l.lineText(pos.Line), "unterminated properties block: missing '}'")
		}
		if l.peek() == '}' {
			l.advance()
			return token.NewProperties(props, label, l.input[start:l.pos], pos), nil
		}
		if l.peek() == ',' {
			l.advance()
			continue
		}

		l.markStart()
		keyPos := l.startPosition()
		var key string
		if r := l.peek(); r == '\'' || r == '"' {
			k, ok := l.scanQuoted(false)
			if !ok {
				return token.Token{}, NewSyntaxError(keyPos, l.lineText(keyPos.Line), "unterminated string")
			}
			key = k
		} else {
			key = l.scanKey()
		}
		if key == "" {
			return token.Token{}, NewSyntaxErrorf(keyPos, l.lineText(keyPos.Line), "expected property name, found %q", l.peek())
		}

		l.skipWhitespace()
		if l.eof() || l.peek() != '=' {
			return token.Token{}, NewSyntaxErrorf(keyPos, l.lineText(keyPos.Line), "expected '=' after property %q", key)
		}
		l.advance()
		l.skipWhitespace()
		if l.eof() {
			return token.Token{}, NewSyntaxError(pos, l.lineText(pos.Line), "unterminated properties block: missing '}'")
		}

		value, err := l.scanArg()
		if err != nil {
			return token.Token{}, err
		}
		props[key] = value
	}
}

// scanList scans a [ ... ] list of tokens.
func (l *Lexer) scanList() (token.Token, error) {
	l.markStart()
	pos := l.startPosition()
	start := l.pos

	// Skip [
	l.advance()
	var items []token.Token

	for {
		l.skipWhitespace()
		if l.eof() {
			return token.Token{}, NewSyntaxError(pos, l.lineText(pos.Line), "unterminated list: missing ']'")
		}
		switch l.peek() {
		case ']':
			l.advance()
			return token.NewList(items, l.input[start:l.pos], pos), nil
		case ',':
			l.advance()
			continue
		}

		item, err := l.scanArg()
		if err != nil {
			return token.Token{}, err
		}
		items = append(items, item)
	}
}

// scanWordToken scans a bare word: a label, boolean, number or identifier.
func (l *Lexer) scanWordToken() (token.Token, error) {
	l.markStart()
	pos := l.startPosition()
	word := l.scanWord()

	if !l.eof() && l.peek() == ':' && l.continuesWord() {
		word += l.scanWordTail()
	} else if !l.eof() && l.peek() == ':' {
		// Skip :
		l.advance()
		l.skipSpace()
		if l.eof() || l.peek() != '{' {
			return token.Token{}, NewSyntaxErrorf(pos, l.lineText(pos.Line), "expected '{' after label %q", word)
		}
		return l.scanBlock(word)
	}

	switch {
	case strings.EqualFold(word, "true"):
		return token.NewBoolean(true, word, pos), nil
	case strings.EqualFold(word, "false"):
		return token.NewBoolean(false, word, pos), nil
	case looksNumeric(word):
		if tok, err := token.NewNumber(word, pos); err == nil {
			return tok, nil
		}
	}
	return token.NewIdentifier(word, pos), nil
}

// Helper methods

// scanWord consumes a run of word runes.
func (l *Lexer) scanWord() string {
	start := l.pos
	for !l.eof() && isWordRune(l.peek()) {
		l.advance()
	}
	return l.input[start:l.pos]
}

// continuesWord reports whether the ':' at the current position is followed
// directly by a word rune, as in "http://host" or "12:30".
func (l *Lexer) continuesWord() bool {
	rest := l.input[l.pos+1:]
	if rest == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return isWordRune(r) || r == ':'
}

// scanWordTail consumes word runes and colons following a word.
func (l *Lexer) scanWordTail() string {
	start := l.pos
	for !l.eof() && (isWordRune(l.peek()) || l.peek() == ':') {
		l.advance()
	}
	return l.input[start:l.pos]
}

// scanKey consumes a property name.
func (l *Lexer) scanKey() string {
	start := l.pos
	for !l.eof() {
		r := l.peek()
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' && r != '.' {
			break
		}
		l.advance()
	}
	return l.input[start:l.pos]
}

// peek returns the current rune without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

// advance moves to the next rune, updating position tracking.
func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}

	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size

	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}

func (l *Lexer) eof() bool {
	return l.pos >= len(l.input)
}

// matchString checks if the input at current position matches s.
func (l *Lexer) matchString(s string) bool {
	return strings.HasPrefix(l.input[l.pos:], s)
}

// skipSpace skips spaces and tabs on the current line.
func (l *Lexer) skipSpace() {
	for !l.eof() {
		r := l.peek()
		if r != ' ' && r != '\t' && r != '\r' {
			break
		}
		l.advance()
	}
}

// skipWhitespace skips all whitespace including newlines.
func (l *Lexer) skipWhitespace() {
	for !l.eof() && unicode.IsSpace(l.peek()) {
		l.advance()
	}
}

// skipBlank skips whitespace, empty statements and comment lines.
func (l *Lexer) skipBlank() {
	for !l.eof() {
		switch {
		case unicode.IsSpace(l.peek()) || l.peek() == ';':
			l.advance()
		case l.matchString("//"):
			l.skipLine()
		default:
			return
		}
	}
}

// skipLine advances past the next newline.
func (l *Lexer) skipLine() {
	for !l.eof() {
		r := l.peek()
		l.advance()
		if r == '\n' {
			return
		}
	}
}

// markStart records the start position for the current token.
func (l *Lexer) markStart() {
	l.lastLine = l.line
	l.lastCol = l.col
	l.lastOffset = l.pos
}

// startPosition returns the position where the current token started.
func (l *Lexer) startPosition() token.Position {
	return token.Position{Line: l.lastLine, Column: l.lastCol, Offset: l.lastOffset}
}

// lineText returns the trimmed source text of a 1-based line.
func (l *Lexer) lineText(line int) string {
	lines := strings.Split(l.input, "\n")
	if line < 1 || line > len(lines) {
		return ""
	}
	return strings.TrimSpace(lines[line-1])
}

// isWordRune reports whether r can appear in a bare word. Structural runes
// and whitespace end a word.
func isWordRune(r rune) bool {
	if unicode.IsSpace(r) {
		return false
	}
	switch r {
	case ';', ',', ':', '\'', '"', '{', '}', '[', ']', 0:
		return false
	}
	return true
}

// isDirectiveName reports whether word is shaped like a directive name:
// a letter followed by letters, digits, '-' or '_'.
func isDirectiveName(word string) bool {
	for i, r := range word {
		switch {
		case unicode.IsLetter(r):
		case i > 0 && (unicode.IsDigit(r) || r == '-' || r == '_'):
		default:
			return false
		}
	}
	return word != ""
}

func looksNumeric(word string) bool {
	if word == "" {
		return false
	}
	r := rune(word[0])
	if r == '-' || r == '+' || r == '.' {
		return len(word) > 1
	}
	return unicode.IsDigit(r)
}

func unescape(r rune) rune {
	switch r {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return r
	}
}
