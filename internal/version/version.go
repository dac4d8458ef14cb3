package version

import (
	"fmt"
	"io"
	"os"

	"github.com/Ani-Moopa/moopa-resolver/internal/store"
)

const (
	Version = "2.0.0"
)

func HasVersionArg() bool {
	if len(os.Args) > 1 {
		arg := os.Args[1]
		return arg == "--version" || arg == "-version" || arg == "-v" || arg == "--v" || arg == "version"
	}
	return false
}

// String returns the version line printed by ShowVersion
func String() string {
	s := fmt.Sprintf("moopa-resolver v%s", Version)
	if store.IsCgoEnabled {
		return s + " (with SQLite mapping store)"
	}
	return s + " (without SQLite mapping store)"
}

func ShowVersion(w io.Writer) {
	_, _ = fmt.Fprintln(w, String())
}
