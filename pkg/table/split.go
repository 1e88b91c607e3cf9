package table

import "strings"

// quote toggles the inside-quotes state while splitting.
const quote = '"'

// SplitFields splits line on delim, ignoring delimiters that fall inside a
// "..." run. Quote characters stay in the field text.
//
// The split never collapses: empty fields, including trailing ones, are kept,
// and an empty line yields a single empty field.
//
//	SplitFields(`a;"b;c";d`, ";") // ["a", `"b;c"`, "d"]
//	SplitFields("a,,b,", ",")      // ["a", "", "b", ""]
//
// An empty delim returns the whole line as one field.
func SplitFields(line, delim string) []string {
	if delim == "" {
		return []string{line}
	}

	fields := make([]string, 0, strings.Count(line, delim)+1)
	inQuotes := false
	start := 0

	for i := 0; i < len(line); {
		if line[i] == quote {
			inQuotes = !inQuotes
			i++

			continue
		}

		if !inQuotes && strings.HasPrefix(line[i:], delim) {
			fields = append(fields, line[start:i])
			i += len(delim)
			start = i

			continue
		}

		i++
	}

	return append(fields, line[start:])
}

// JoinFields concatenates values with delim between each pair.
//
// No quoting is applied: a value containing delim splits into several fields
// on the next read. Use [Options.QuoteOnWrite] on a [Table] to wrap such
// values in quotes instead.
func JoinFields(values []string, delim string) string {
	return strings.Join(values, delim)
}

// quoteFields returns values with every field that contains delim wrapped in
// quotes, unless it is already wrapped. The input slice is not modified.
func quoteFields(values []string, delim string) []string {
	out := make([]string, len(values))

	for i, v := range values {
		if strings.Contains(v, delim) && !isQuoted(v) {
			v = string(quote) + v + string(quote)
		}

		out[i] = v
	}

	return out
}

func isQuoted(v string) bool {
	return len(v) >= 2 && v[0] == quote && v[len(v)-1] == quote
}
