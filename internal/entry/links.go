package entry

import (
	"regexp"
	"strings"
)

// Link represents a wiki-link found in an entry body.
type Link struct {
	Target      string
	DisplayText string
	Line        int // 1-indexed, relative to the whole file
}

// linkRe matches [[target]], [[target|display]] and [[target#section]].
// The target cannot contain [ or ] so array syntax like [[[x]]] is skipped.
var linkRe = regexp.MustCompile(`\[\[([^\]\[|#]+)(?:#[^\]\[|]*)?(?:\|([^\]]+))?\]\]`)

// ParseLink parses a string that is exactly a wiki-link literal.
func ParseLink(s string) (target string, ok bool) {
	s = strings.TrimSpace(s)
	m := linkRe.FindStringSubmatchIndex(s)
	if m == nil || m[0] != 0 || m[1] != len(s) {
		return "", false
	}
	target = strings.TrimSpace(s[m[2]:m[3]])
	return target, target != ""
}

// FindLinks returns the wiki-links in content, skipping fenced code blocks.
// startLine is the file line number of the first line in content.
func FindLinks(content string, startLine int) []Link {
	var out []Link
	inFence := false

	for i, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}

		for _, m := range linkRe.FindAllStringSubmatchIndex(line, -1) {
			if m[0] > 0 && line[m[0]-1] == '[' {
				continue
			}
			target := strings.TrimSpace(line[m[2]:m[3]])
			if target == "" {
				continue
			}
			link := Link{Target: target, Line: startLine + i}
			if m[4] >= 0 {
				link.DisplayText = strings.TrimSpace(line[m[4]:m[5]])
			}
			out = append(out, link)
		}
	}

	return out
}
