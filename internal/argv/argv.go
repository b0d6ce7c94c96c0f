// Package argv splits interactive shell input into arguments with
// POSIX-like quoting: single quotes are literal, double quotes allow
// backslash escapes for \" and \\, and an unquoted backslash escapes
// the next rune. There is no expansion, globbing, or comment handling.
package argv

import "strings"

// Parse tokenizes s into arguments. Unterminated quotes extend to the
// end of the input rather than failing; the interactive caller treats
// the line as best effort.
func Parse(s string) []string {
	var (
		out      []string
		buf      strings.Builder
		started  bool
		inSingle bool
		inDouble bool
		esc      bool
	)

	flush := func() {
		if started {
			out = append(out, buf.String())
			buf.Reset()
			started = false
		}
	}

	for _, r := range s {
		if esc {
			if inDouble && r != '"' && r != '\\' {
				buf.WriteRune('\\')
			}
			buf.WriteRune(r)
			started = true
			esc = false
			continue
		}

		switch {
		case r == '\\' && !inSingle:
			esc = true
			started = true
		case r == '\'' && !inDouble:
			inSingle = !inSingle
			started = true
		case r == '"' && !inSingle:
			inDouble = !inDouble
			started = true
		case (r == ' ' || r == '\t' || r == '\n') && !inSingle && !inDouble:
			flush()
		default:
			buf.WriteRune(r)
			started = true
		}
	}
	if esc {
		buf.WriteRune('\\')
	}
	flush()
	return out
}
