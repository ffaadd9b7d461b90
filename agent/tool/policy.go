package tool

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStatementNotReadOnly marks a statement rejected by the static policy
// before it ever reaches the database.
var ErrStatementNotReadOnly = errors.New("only read-only SELECT statements are allowed")

// ensureReadOnly enforces the static execution policy: a single statement
// that is a SELECT, including SELECTs behind a CTE list. SQLite allows
// WITH-prefixed DML, so a leading WITH is only accepted when the statement's
// top-level verb is SELECT. The model may still produce a semantically wrong
// query; that is caught by the syntax check and by the model reviewing its
// own tool results.
func ensureReadOnly(query string) error {
	q := strings.TrimSpace(query)
	if q == "" {
		return errors.New("query is empty")
	}

	q = strings.TrimSuffix(q, ";")
	if strings.Contains(q, ";") {
		return fmt.Errorf("%w: multiple statements are not allowed", ErrStatementNotReadOnly)
	}

	first := firstKeyword(q)
	switch first {
	case "SELECT":
		return nil
	case "WITH":
		verb := statementVerb(q)
		if verb == "SELECT" {
			return nil
		}
		return fmt.Errorf("%w: WITH statement resolves to %q", ErrStatementNotReadOnly, verb)
	default:
		return fmt.Errorf("%w: statement starts with %q", ErrStatementNotReadOnly, first)
	}
}

func firstKeyword(q string) string {
	fields := strings.Fields(q)
	if len(fields) == 0 {
		return ""
	}
	word := fields[0]
	if idx := strings.IndexAny(word, "(;"); idx > 0 {
		word = word[:idx]
	}
	return strings.ToUpper(word)
}

// statementVerb returns the first statement keyword at parenthesis depth
// zero after the leading WITH. CTE bodies are always parenthesized, so a
// SELECT inside one never counts; the word found here is the verb the
// statement actually executes.
func statementVerb(q string) string {
	words := topLevelWords(q)
	for i, w := range words {
		if i == 0 {
			continue
		}
		switch w {
		case "SELECT", "VALUES", "INSERT", "REPLACE", "UPDATE", "DELETE":
			return w
		}
	}
	return ""
}

// topLevelWords tokenizes identifiers and keywords outside parentheses,
// skipping string literals and quoted identifiers.
func topLevelWords(q string) []string {
	var words []string
	var word []byte
	depth := 0
	var quote byte

	flush := func() {
		if len(word) > 0 {
			words = append(words, strings.ToUpper(string(word)))
			word = word[:0]
		}
	}

	for i := 0; i < len(q); i++ {
		c := q[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"' || c == '`':
			flush()
			quote = c
		case c == '[':
			flush()
			quote = ']'
		case c == '(':
			flush()
			depth++
		case c == ')':
			flush()
			depth--
		case depth == 0 && isIdentChar(c):
			word = append(word, c)
		default:
			if depth == 0 {
				flush()
			}
		}
	}
	flush()
	return words
}

func isIdentChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '_':
		return true
	}
	return false
}
