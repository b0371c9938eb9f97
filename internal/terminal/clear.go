// Package terminal provides utilities for terminal operations such as
// measuring width, reading hidden input and clearing prompts.
package terminal

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"golang.org/x/term"
)

// DefaultWidth is used when the terminal size is unknown.
const DefaultWidth = 200

// Width returns the width of stdout, or DefaultWidth when stdout is not a
// terminal.
func Width() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return DefaultWidth
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// ReadPassword prints prompt to stderr and reads a line from stdin without
// echo. When stdin is not a terminal the line is read as-is.
func ReadPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if !IsTerminal(os.Stdin) {
		var line string
		_, err := fmt.Fscanln(os.Stdin, &line)
		if err != nil && err != io.EOF {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// ClearPreviousLines clears text from stderr that was previously printed.
// It calculates how many lines were used by the provided text based on the
// current terminal width, then moves up and clears each line.
//
// Parameters:
//   - textLength: The total number of characters in the text to clear (prompt + user input)
//
// The function:
//  1. Gets the current terminal width (defaults to 80 if unavailable)
//  2. Calculates how many lines the text occupied
//  3. Moves up and clears each line using ANSI escape sequences
//  4. Adds +1 to account for the extra line created when user presses Enter
func ClearPreviousLines(textLength int) {
	if !IsTerminal(os.Stderr) {
		return
	}
	termWidth := 80
	if width, _, err := term.GetSize(int(os.Stderr.Fd())); err == nil && width > 0 {
		termWidth = width
	}

	totalLines := int(math.Ceil(float64(textLength) / float64(termWidth)))
	if totalLines < 1 {
		totalLines = 1
	}

	// After Enter, cursor is on a NEW line below the input.
	linesToClear := totalLines + 1

	for i := 0; i < linesToClear; i++ {
		fmt.Fprint(os.Stderr, "\r\x1b[2K")
		if i < linesToClear-1 {
			fmt.Fprint(os.Stderr, "\x1b[1A")
		}
	}
}
