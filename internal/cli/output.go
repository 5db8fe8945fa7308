package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/aidanlsb/kb/internal/ui"
)

// warningLine prefixes message with ref unless the message already names it.
func warningLine(message, ref string) string {
	if ref == "" || strings.HasPrefix(message, ref) {
		return ui.Warning(message)
	}
	return ui.Warningf("%s: %s", ref, message)
}

// printField prints an aligned "label  value" line.
func printField(w io.Writer, label string, value interface{}) {
	fmt.Fprintf(w, "%s  %s\n", ui.Muted.Render(fmt.Sprintf("%-13s", label+":")), ui.Accent.Render(fmt.Sprint(value)))
}

// highlightSnippet renders the »match« markers produced by the FTS snippet.
// Unpaired markers left by truncation are dropped.
func highlightSnippet(s string) string {
	var b strings.Builder
	for {
		start := strings.Index(s, "»")
		if start < 0 {
			break
		}
		end := strings.Index(s[start:], "«")
		if end < 0 {
			break
		}
		end += start
		b.WriteString(s[:start])
		b.WriteString(ui.Bold.Render(s[start+len("»") : end]))
		s = s[end+len("«"):]
	}
	b.WriteString(strings.NewReplacer("»", "", "«", "").Replace(s))
	return strings.TrimSpace(b.String())
}
