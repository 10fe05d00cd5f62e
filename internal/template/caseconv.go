package template

import "strings"

// ChangeCase renders s according to the given case convention. Inputs are
// first split into words on whitespace, underscores, hyphens, and
// camel-case boundaries so any of the six conventions can be reached from
// any other (spec testable property R2: ChangeCase is idempotent under
// re-application of the same case).
func ChangeCase(s string, c Case) string {
	words := splitWords(s)
	if len(words) == 0 {
		return ""
	}

	switch c {
	case CaseSnake, CaseLowerSnake:
		return strings.ToLower(strings.Join(words, "_"))
	case CaseUpperSnake:
		return strings.ToUpper(strings.Join(words, "_"))
	case CaseKebab:
		return strings.ToLower(strings.Join(words, "-"))
	case CaseCamel:
		return toCamel(words, false)
	case CasePascal:
		return toCamel(words, true)
	default:
		return strings.Join(words, "_")
	}
}

func toCamel(words []string, pascal bool) string {
	var b strings.Builder
	for i, w := range words {
		lw := strings.ToLower(w)
		if i == 0 && !pascal {
			b.WriteString(lw)
			continue
		}
		b.WriteString(capitalize(lw))
	}
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// splitWords breaks s into word tokens (original case kept) on whitespace, '_', '-',
// and camelCase boundaries (a lower-to-upper transition starts a new word).
func splitWords(s string) []string {
	var words []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '_' || r == '-':
			flush()
		case r >= 'A' && r <= 'Z':
			if i > 0 {
				prev := runes[i-1]
				prevIsLower := prev >= 'a' && prev <= 'z'
				nextIsLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
				if prevIsLower || (nextIsLower && cur.Len() > 0) {
					flush()
				}
			}
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}
