package output

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// PrintRight rewrites the current terminal line with text aligned to the
// right edge. It writes to stderr so the report on stdout stays clean.
func PrintRight(text string) {
	// Get terminal width.
	width, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil {
		width = 80
	}

	// Set padding.
	padding := width - len(text)
	if padding < 0 {
		padding = 0
	}

	fmt.Fprintf(os.Stderr, "\r%s%s", spaces(padding), text)
}

func spaces(n int) string {
	return fmt.Sprintf("%*s", n, "")
}

func PrettySampleStatus(progress float64, samples, idle uint64) string {
	return fmt.Sprintf("\r%-50s %-20s %-20s",
		fmt.Sprintf("Sampling: [%s] %6.2f%%", ProgressBar(int(progress), 40), progress),
		fmt.Sprintf("Samples: %6d", samples),
		fmt.Sprintf("Idle: %6d", idle),
	)
}

func ProgressBar(percent int, width int) string {
	if percent > 100 {
		percent = 100
	}
	filled := (percent * width) / 100
	return fmt.Sprintf("%s%s",
		strings.Repeat("█", filled),
		strings.Repeat(" ", width-filled),
	)
}
