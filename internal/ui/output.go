package ui

import (
	"fmt"
	"strings"
)

// Status symbols prefixed to one-line messages.
const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "⚠"
	SymbolInfo    = "ℹ"
)

func status(symbol, msg string) string {
	return symbol + " " + msg
}

// Success returns msg prefixed with a checkmark.
func Success(msg string) string { return status(SymbolSuccess, msg) }

// Successf is Success with formatting.
func Successf(format string, args ...interface{}) string {
	return Success(fmt.Sprintf(format, args...))
}

// Error returns msg prefixed with a cross.
func Error(msg string) string { return status(SymbolError, msg) }

// Errorf is Error with formatting.
func Errorf(format string, args ...interface{}) string {
	return Error(fmt.Sprintf(format, args...))
}

// Warning returns msg prefixed with a warning sign.
func Warning(msg string) string { return status(SymbolWarning, msg) }

// Warningf is Warning with formatting.
func Warningf(format string, args ...interface{}) string {
	return Warning(fmt.Sprintf(format, args...))
}

// Info returns msg prefixed with an info sign.
func Info(msg string) string { return status(SymbolInfo, msg) }

// Infof is Info with formatting.
func Infof(format string, args ...interface{}) string {
	return Info(fmt.Sprintf(format, args...))
}

// Header returns a styled section header
func Header(msg string) string {
	return Bold.Render(msg)
}

// FilePath returns an accent-styled KB path
func FilePath(path string) string {
	return Accent.Render(path)
}

// Hint returns muted hint text
func Hint(msg string) string {
	return Muted.Render(msg)
}

// Quantity returns n with the matching noun, e.g. "1 entry" or "3 entries".
func Quantity(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}

// Count returns Quantity as a parenthesised badge, e.g. "(3 results)".
func Count(n int, singular, plural string) string {
	return "(" + Quantity(n, singular, plural) + ")"
}

// IssueCounts summarises validation issues as a badge like "(1 error, 2 warnings)".
// Zero counts are left out, and no issues at all yields "".
func IssueCounts(errors, warnings int) string {
	var parts []string
	if errors > 0 {
		parts = append(parts, Quantity(errors, "error", "errors"))
	}
	if warnings > 0 {
		parts = append(parts, Quantity(warnings, "warning", "warnings"))
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
