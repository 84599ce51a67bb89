package symtab

// WildcardMatch implements shell-glob semantics over export/unexport/
// interpose name lists (spec.md §4.1): '*' matches any run of characters,
// '?' matches exactly one, '[...]' is a character class supporting ranges
// and a leading '!' or '^' negation, and '\\' escapes the following rune
// literally. This is P7's reference semantics.
func WildcardMatch(pattern, s string) bool {
	return wildcardMatch([]rune(pattern), []rune(s))
}

func wildcardMatch(p, s []rune) bool {
	for len(p) > 0 {
		switch p[0] {
		case '*':
			// collapse consecutive stars
			for len(p) > 0 && p[0] == '*' {
				p = p[1:]
			}
			if len(p) == 0 {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if wildcardMatch(p, s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(s) == 0 {
				return false
			}
			p, s = p[1:], s[1:]
		case '[':
			if len(s) == 0 {
				return false
			}
			end := findClassEnd(p)
			if end < 0 {
				// unterminated class: treat '[' literally
				if s[0] != '[' {
					return false
				}
				p, s = p[1:], s[1:]
				continue
			}
			if !matchClass(p[1:end], s[0]) {
				return false
			}
			p, s = p[end+1:], s[1:]
		case '\\':
			if len(p) < 2 {
				return len(s) > 0 && s[0] == '\\' && len(s) == 1
			}
			if len(s) == 0 || s[0] != p[1] {
				return false
			}
			p, s = p[2:], s[1:]
		default:
			if len(s) == 0 || s[0] != p[0] {
				return false
			}
			p, s = p[1:], s[1:]
		}
	}
	return len(s) == 0
}

func findClassEnd(p []rune) int {
	for i := 1; i < len(p); i++ {
		if p[i] == ']' && i > 1 {
			return i
		}
	}
	return -1
}

func matchClass(class []rune, c rune) bool {
	neg := false
	if len(class) > 0 && (class[0] == '!' || class[0] == '^') {
		neg = true
		class = class[1:]
	}
	matched := false
	for i := 0; i < len(class); i++ {
		if i+2 < len(class) && class[i+1] == '-' {
			lo, hi := class[i], class[i+2]
			if lo <= c && c <= hi {
				matched = true
			}
			i += 2
			continue
		}
		if class[i] == c {
			matched = true
		}
	}
	return matched != neg
}

// HasWildcardMeta reports whether pattern contains any glob metacharacter,
// letting callers route exact names through a fast hash lookup and only
// scan the wildcard list on a miss.
func HasWildcardMeta(pattern string) bool {
	for _, r := range pattern {
		switch r {
		case '*', '?', '[', '\\':
			return true
		}
	}
	return false
}

// NameMatcher partitions a list of names/patterns into an exact-match set
// and a linearly-scanned wildcard list, per spec.md §4.1's "hash set, then
// linear wildcard scan on miss" strategy.
type NameMatcher struct {
	exact    map[string]bool
	wildcards []string
}

func NewNameMatcher(patterns []string) *NameMatcher {
	m := &NameMatcher{exact: map[string]bool{}}
	for _, p := range patterns {
		if HasWildcardMeta(p) {
			m.wildcards = append(m.wildcards, p)
		} else {
			m.exact[p] = true
		}
	}
	return m
}

func (m *NameMatcher) Match(name string) bool {
	if m.exact[name] {
		return true
	}
	for _, p := range m.wildcards {
		if WildcardMatch(p, name) {
			return true
		}
	}
	return false
}
