package synth

import "strings"

// Clean normalizes raw model output into plain source text: code fences
// stripped, CRLF folded to LF, trailing whitespace removed, the common
// leading indent dropped, and exactly one trailing newline. It is a pure
// text transform, run before any correctness check, and cleaning already
// clean code is a no-op.
func Clean(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	if strings.TrimSpace(s) == "" {
		return ""
	}

	// Indentation must survive until dedent sees it, so only newlines are
	// trimmed here.
	s = strings.Trim(s, "\n")
	s = stripFences(s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	lines = dedent(lines)

	s = strings.Trim(strings.Join(lines, "\n"), "\n")
	if s == "" {
		return ""
	}
	return s + "\n"
}

// stripFences removes a surrounding markdown code fence, tolerating prose
// before the opening fence and an unterminated leading fence.
func stripFences(s string) string {
	i := strings.Index(s, "```")
	if i == -1 {
		return s
	}
	if j := strings.LastIndex(s, "```"); j > i+2 {
		inner := s[i+3 : j]
		if nl := strings.Index(inner, "\n"); nl != -1 {
			if tag := strings.TrimSpace(inner[:nl]); tag == "" || isLangTag(tag) {
				inner = inner[nl+1:]
			}
		}
		return inner
	}
	if i == 0 {
		// Unterminated opening fence: drop the fence line itself.
		if nl := strings.Index(s, "\n"); nl != -1 {
			return s[nl+1:]
		}
		return ""
	}
	return s
}

// isLangTag reports whether the first fence line is a language marker
// rather than code.
func isLangTag(s string) bool {
	if len(s) > 15 {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// dedent strips the longest common whitespace prefix from all non-blank
// lines.
func dedent(lines []string) []string {
	prefix := ""
	found := false
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if !found {
			prefix, found = indent, true
			continue
		}
		prefix = commonPrefix(prefix, indent)
		if prefix == "" {
			return lines
		}
	}
	if prefix == "" {
		return lines
	}

	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = strings.TrimPrefix(line, prefix)
	}
	return out
}

func commonPrefix(a, b string) string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[:i]
		}
	}
	return a[:n]
}
