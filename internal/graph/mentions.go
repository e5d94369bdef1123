package graph

import "strings"

// mentionMinLen keeps trivially short names (single letters, "a", "ok")
// from flooding mention results.
const mentionMinLen = 3

// UnlinkedMentions returns the notes whose body mentions the note at path
// by title, filename stem, or alias without already linking to it. Matches
// are case-insensitive and whole-word; results come back in path order.
func (s *Snapshot) UnlinkedMentions(path string) []string {
	target, ok := s.Notes[path]
	if !ok || !target.Kind.IsNote() {
		return nil
	}

	var names []string
	addName := func(n string) {
		n = strings.ToLower(strings.TrimSpace(n))
		if len(n) >= mentionMinLen {
			names = append(names, n)
		}
	}
	addName(stemOf(path))
	addName(target.Title)
	for _, a := range target.Aliases {
		addName(a)
	}
	if len(names) == 0 {
		return nil
	}

	linked := make(map[string]struct{}, len(s.inbound[path]))
	for _, src := range s.inbound[path] {
		linked[src] = struct{}{}
	}

	var out []string
	for _, p := range s.Paths {
		if p == path {
			continue
		}
		n := s.Notes[p]
		if !n.Kind.IsNote() {
			continue
		}
		if _, already := linked[p]; already {
			continue
		}
		body := strings.ToLower(n.Body)
		for _, name := range names {
			if containsWord(body, name) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// containsWord reports a whole-word occurrence of needle: the characters
// around the match must not be letters, digits, or underscores.
func containsWord(haystack, needle string) bool {
	for start := 0; ; {
		i := strings.Index(haystack[start:], needle)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(needle)
		before := i == 0 || !isWordByte(haystack[i-1])
		after := end >= len(haystack) || !isWordByte(haystack[end])
		if before && after {
			return true
		}
		start = i + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}
