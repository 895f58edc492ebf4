// Package jsonc strips comments and trailing commas from commented JSON, so
// that the result can be handed to a strict JSON decoder.
package jsonc

// Strip removes `//` line comments, `/* */` block comments, and trailing
// commas before `}` or `]`. Characters inside string literals are never
// altered; backslash escapes are honored. An unterminated block comment
// consumes the rest of the input.
func Strip(input []byte) []byte {
	return stripTrailingCommas(stripComments(input))
}

func stripComments(input []byte) []byte {
	out := make([]byte, 0, len(input))
	inString := false

	for i := 0; i < len(input); i++ {
		c := input[i]

		if inString {
			out = append(out, c)
			if c == '\\' && i+1 < len(input) {
				i++
				out = append(out, input[i])
			} else if c == '"' {
				inString = false
			}

			continue
		}

		switch {
		case c == '"':
			inString = true
			out = append(out, c)

		case c == '/' && i+1 < len(input) && input[i+1] == '/':
			// Line comment, skip to end of line.
			for i < len(input) && input[i] != '\n' {
				i++
			}
			if i < len(input) {
				out = append(out, '\n')
			}

		case c == '/' && i+1 < len(input) && input[i+1] == '*':
			i += 2
			for i+1 < len(input) && !(input[i] == '*' && input[i+1] == '/') {
				i++
			}
			i++ // Skip the trailing '/' (or EOF).

		default:
			out = append(out, c)
		}
	}

	return out
}

func stripTrailingCommas(input []byte) []byte {
	out := make([]byte, 0, len(input))
	inString := false

	for i := 0; i < len(input); i++ {
		c := input[i]

		if inString {
			out = append(out, c)
			if c == '\\' && i+1 < len(input) {
				i++
				out = append(out, input[i])
			} else if c == '"' {
				inString = false
			}

			continue
		}

		if c == '"' {
			inString = true
			out = append(out, c)

			continue
		}

		if c == ',' {
			// Look ahead past whitespace for a closing brace or bracket.
			j := i + 1
			for j < len(input) && isSpace(input[j]) {
				j++
			}
			if j < len(input) && (input[j] == '}' || input[j] == ']') {
				continue // Drop the trailing comma.
			}
		}

		out = append(out, c)
	}

	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
