package index

import (
	"strings"
	"unicode"
)

// BuildFTSQuery builds a safe FTS5 MATCH expression from a user query. It
// searches every indexed column (title, body, tags) and avoids common parser
// footguns with hyphenated tokens.
//
// The returned string is meant to be passed as the RHS of `fts_entries MATCH ?`.
func BuildFTSQuery(userQuery string) string {
	q := strings.TrimSpace(userQuery)
	if q == "" {
		// Match nothing (FTS phrase query for empty string).
		return `""`
	}
	return sanitizeFTSQuery(q)
}

// sanitizeFTSQuery quotes unquoted tokens containing '-' to prevent SQLite FTS
// from interpreting them as operators (which can surface as "no such column" errors).
//
// This keeps quoted phrases intact and preserves boolean operators/parentheses.
func sanitizeFTSQuery(q string) string {
	var b strings.Builder
	b.Grow(len(q) + 8)

	inQuotes := false
	i := 0
	for i < len(q) {
		c := q[i]

		// Toggle quoted phrase state; keep the quote.
		if c == '"' {
			inQuotes = !inQuotes
			b.WriteByte(c)
			i++
			continue
		}

		if inQuotes {
			b.WriteByte(c)
			i++
			continue
		}

		// Preserve whitespace as-is.
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			b.WriteByte(c)
			i++
			continue
		}

		// Preserve grouping punctuation.
		if c == '(' || c == ')' {
			b.WriteByte(c)
			i++
			continue
		}

		// Consume a token until whitespace or paren.
		start := i
		for i < len(q) {
			cc := q[i]
			if cc == '"' || cc == '(' || cc == ')' || cc == ' ' || cc == '\t' || cc == '\n' || cc == '\r' {
				break
			}
			i++
		}
		tok := q[start:i]

		upper := strings.ToUpper(tok)
		switch upper {
		case "AND", "OR", "NOT", "NEAR":
			b.WriteString(tok)
			continue
		}

		// Don't rewrite column-scoped tokens like `title:foo`.
		if isColumnScoped(tok) {
			b.WriteString(tok)
			continue
		}

		// Quote hyphenated or punctuated tokens. A trailing `*` prefix marker
		// stays outside the quotes.
		if needsQuoting(tok) {
			prefix := strings.HasSuffix(tok, "*")
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(strings.TrimSuffix(tok, "*"), `"`, `""`))
			b.WriteByte('"')
			if prefix {
				b.WriteByte('*')
			}
			continue
		}

		b.WriteString(tok)
	}

	return b.String()
}

var ftsColumns = []string{"title", "body", "tags"}

func isColumnScoped(tok string) bool {
	col, rest, ok := strings.Cut(tok, ":")
	if !ok || rest == "" {
		return false
	}
	for _, c := range ftsColumns {
		if col == c {
			return !needsQuoting(rest)
		}
	}
	return false
}

func needsQuoting(tok string) bool {
	body := strings.TrimSuffix(tok, "*")
	for _, r := range body {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		return true
	}
	return false
}
