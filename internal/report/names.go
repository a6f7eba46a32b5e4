package report

import (
	"strings"
	"unicode"
)

// NicifyName turns a serialized field name into a display label:
// m_TargetObject becomes "Target Object", kMaxCount becomes "Max Count".
func NicifyName(name string) string {
	s := strings.TrimPrefix(name, "m_")
	if len(s) > 1 && s[0] == 'k' && unicode.IsUpper(rune(s[1])) {
		s = s[1:]
	}
	s = strings.TrimLeft(s, "_")

	runes := []rune(s)
	var b strings.Builder
	space := false
	for i, r := range runes {
		if r == '_' || r == ' ' {
			if b.Len() > 0 {
				space = true
			}
			continue
		}

		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				space = true
			}
		}

		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false

		if b.Len() == 0 {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
	}

	if b.Len() == 0 {
		return name
	}
	return b.String()
}
