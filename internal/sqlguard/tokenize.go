package sqlguard

import (
	"fmt"
	"strings"
	"unicode"
)

var forbiddenKeywords = map[string]struct{}{
	"INSERT": {}, "UPDATE": {}, "DELETE": {}, "DROP": {}, "ALTER": {}, "CREATE": {},
	"PRAGMA": {}, "ATTACH": {}, "DETACH": {}, "REPLACE": {}, "TRUNCATE": {}, "GRANT": {},
	"REVOKE": {}, "VACUUM": {}, "REINDEX": {}, "COPY": {}, "CALL": {}, "EXEC": {},
	"MERGE": {}, "SET": {}, "LOAD": {}, "INSTALL": {}, "INTO": {},
}

// scalarFunctions are forbidden keywords that are also read-only functions
// when called, as in REPLACE(Name, 'a', 'b').
var scalarFunctions = map[string]struct{}{
	"REPLACE": {},
}

type tokenKind int

const (
	tokenWord tokenKind = iota + 1
	tokenLiteral
	tokenSymbol
	tokenTerminator
	tokenComment
)

type token struct {
	kind  tokenKind
	value string
}

// tokenize splits a statement into words, quoted literals and symbols.
// Quoted text is kept whole so keywords inside strings are not matched.
func tokenize(sql string) ([]token, error) {
	var tokens []token
	runes := []rune(sql)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			end := i
			for end < len(runes) && runes[end] != '\n' {
				end++
			}
			tokens = append(tokens, token{kind: tokenComment, value: string(runes[i:end])})
			i = end
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			end := i + 2
			for end+1 < len(runes) && !(runes[end] == '*' && runes[end+1] == '/') {
				end++
			}
			if end+1 >= len(runes) {
				return nil, fmt.Errorf("unterminated block comment")
			}
			tokens = append(tokens, token{kind: tokenComment, value: string(runes[i : end+2])})
			i = end + 2
		case r == '\'' || r == '"' || r == '`':
			end, err := scanQuoted(runes, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenLiteral, value: string(runes[i:end])})
			i = end
		case r == '[':
			end := i + 1
			for end < len(runes) && runes[end] != ']' {
				end++
			}
			if end >= len(runes) {
				return nil, fmt.Errorf("unterminated bracket identifier")
			}
			tokens = append(tokens, token{kind: tokenLiteral, value: string(runes[i : end+1])})
			i = end + 1
		case r == ';':
			tokens = append(tokens, token{kind: tokenTerminator, value: ";"})
			i++
		case isWordRune(r):
			end := i
			for end < len(runes) && isWordRune(runes[end]) {
				end++
			}
			tokens = append(tokens, token{kind: tokenWord, value: string(runes[i:end])})
			i = end
		default:
			tokens = append(tokens, token{kind: tokenSymbol, value: string(r)})
			i++
		}
	}
	return tokens, nil
}

// scanQuoted returns the index just past the closing quote. A doubled quote
// inside the literal is an escape.
func scanQuoted(runes []rune, start int) (int, error) {
	quote := runes[start]
	for i := start + 1; i < len(runes); i++ {
		if runes[i] != quote {
			continue
		}
		if i+1 < len(runes) && runes[i+1] == quote {
			i++
			continue
		}
		return i + 1, nil
	}
	return 0, fmt.Errorf("unterminated quoted text")
}

func isWordRune(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// inspect returns a rejection reason, or "" when the statement is a single
// plain read.
func inspect(sql string) string {
	tokens, err := tokenize(sql)
	if err != nil {
		return "statement could not be tokenized: " + err.Error()
	}
	for i, tok := range tokens {
		switch tok.kind {
		case tokenComment:
			return "comments are not allowed"
		case tokenTerminator:
			if i != len(tokens)-1 {
				return "multiple statements are not allowed"
			}
		case tokenWord:
			upper := strings.ToUpper(tok.value)
			if _, fn := scalarFunctions[upper]; fn && isCall(tokens, i) {
				continue
			}
			if _, forbidden := forbiddenKeywords[upper]; forbidden {
				return fmt.Sprintf("keyword %s is not allowed", upper)
			}
		}
	}
	return ""
}

func isCall(tokens []token, i int) bool {
	return i+1 < len(tokens) && tokens[i+1].kind == tokenSymbol && tokens[i+1].value == "("
}

// SingleStatement reports whether text holds at most one statement. A ';'
// only counts as a separator when something other than a comment follows
// it. Text that cannot be tokenized falls back to a plain ';' search.
func SingleStatement(text string) bool {
	tokens, err := tokenize(text)
	if err != nil {
		return !strings.Contains(strings.TrimRight(strings.TrimSpace(text), ";"), ";")
	}
	terminated := false
	for _, tok := range tokens {
		switch tok.kind {
		case tokenComment:
		case tokenTerminator:
			terminated = true
		default:
			if terminated {
				return false
			}
		}
	}
	return true
}
