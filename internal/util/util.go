package util

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/manifoldco/promptui"
)

var (
	minQueryLength = 2

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4757")).
			Bold(true)

	debugErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FF4757")).
			Padding(1, 2)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA726")).
			Bold(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF69B4")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)
)

// SetDebugMode sets the debug mode
func SetDebugMode(debug bool) {
	IsDebug = debug
}

// ErrorHandler returns a stylized error message. Debug mode shows the full
// wrapped chain with stack traces.
func ErrorHandler(err error) string {
	if IsDebug {
		styledHeader := errorStyle.Render("DEBUG ERROR")
		styledError := debugErrorStyle.Render(fmt.Sprintf("%+v", err))
		return fmt.Sprintf("%s\n%s", styledHeader, styledError)
	}

	styledError := errorStyle.Render(fmt.Sprintf("✗ %v", err))
	styledHint := warningStyle.Render("run the command with -debug to see details")
	return fmt.Sprintf("%s\n%s", styledError, styledHint)
}

// Success prints a styled confirmation line
func Success(w io.Writer, msg string) {
	_, _ = fmt.Fprintln(w, successStyle.Render("✓ "+msg))
}

// GetQuery returns the joined args, or prompts for a query when args is empty
func GetQuery(args []string, label string) (string, error) {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		var err error
		if runtime.GOOS == "windows" {
			query, err = getSimpleInput(os.Stdin, label)
		} else {
			query, err = getUserInput(label)
		}
		if err != nil {
			return "", err
		}
	}
	if err := validateQuery(query); err != nil {
		return "", err
	}
	return query, nil
}

func validateQuery(query string) error {
	if len([]rune(strings.TrimSpace(query))) < minQueryLength {
		return fmt.Errorf("query must have at least %d characters, you entered: %q", minQueryLength, query)
	}
	return nil
}

// getUserInput prompts for a line with promptui
func getUserInput(label string) (string, error) {
	prompt := promptui.Prompt{
		Label:    promptStyle.Render(label),
		Validate: validateQuery,
	}
	input, err := prompt.Run()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// getSimpleInput provides a fallback input method for Windows
func getSimpleInput(r io.Reader, label string) (string, error) {
	fmt.Print(promptStyle.Render(label + ": "))

	reader := bufio.NewReader(r)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// SelectMenuItem provides a cross-platform way to select from a menu
func SelectMenuItem(label string, items []string) (int, string, error) {
	if len(items) == 0 {
		return -1, "", fmt.Errorf("nothing to select")
	}
	if runtime.GOOS == "windows" {
		return simpleSelectMenu(os.Stdin, label, items)
	}

	prompt := promptui.Select{
		Label: promptStyle.Render(label),
		Items: items,
		Size:  15,
	}
	index, result, err := prompt.Run()
	if err != nil {
		return -1, "", err
	}
	Success(os.Stdout, "Selected: "+result)
	return index, result, nil
}

// simpleSelectMenu provides a numbered menu for Windows terminals
func simpleSelectMenu(r io.Reader, label string, items []string) (int, string, error) {
	fmt.Println(promptStyle.Render(label))
	for i, item := range items {
		fmt.Printf("%d. %s\n", i+1, item)
	}

	fmt.Print(promptStyle.Render(fmt.Sprintf("Enter selection (1-%d): ", len(items))))
	input, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && input == "" {
		return -1, "", err
	}

	input = strings.TrimSpace(input)
	var selection int
	if _, err := fmt.Sscanf(input, "%d", &selection); err != nil || selection < 1 || selection > len(items) {
		return -1, "", fmt.Errorf("invalid selection: %s", input)
	}
	selection--
	return selection, items[selection], nil
}
