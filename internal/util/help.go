package util

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Help styles using lipgloss
var (
	lightGreen  = lipgloss.Color("#90EE90")
	gray        = lipgloss.Color("#A9A9A9")
	darkGray    = lipgloss.Color("#5A5A5A")
	brightGreen = lipgloss.Color("#00FF7F")
	blue        = lipgloss.Color("#6366F1") // matches logger prefix

	titleStyle = lipgloss.NewStyle().
			Foreground(blue).
			Bold(true).
			PaddingBottom(1).
			MarginLeft(2)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(gray).
			Italic(true).
			PaddingBottom(1).
			MarginLeft(2)

	sectionTitleStyle = lipgloss.NewStyle().
				Foreground(lightGreen).
				Bold(true).
				PaddingLeft(2)

	commandStyle = lipgloss.NewStyle().
			Foreground(brightGreen).
			Bold(true).
			PaddingLeft(4)

	parameterStyle = lipgloss.NewStyle().
			Foreground(gray).
			Italic(true)

	descriptionStyle = lipgloss.NewStyle().
				Foreground(gray).
				PaddingLeft(6).
				Width(80 - 6)

	separatorStyle = lipgloss.NewStyle().
			Foreground(darkGray)
)

// HelpCommand describes one subcommand in the help output
type HelpCommand struct {
	Name string
	Args string
	Desc string
}

// HelpCommands lists the CLI subcommands
var HelpCommands = []HelpCommand{
	{"search", "[-provider p] [-dub] [-year n] <title>", "Match a title against an anime catalog"},
	{"episodes", "[-provider p] -anilist <id> | <catalog id>", "List episodes of a catalog id, or both tracks of an AniList id"},
	{"source", "[-provider p] [-server s] -episode <n> <episode id>", "Resolve the playable stream of an episode"},
	{"watch", "[-provider p] [-dub] [title]", "Pick a title, episode and server interactively"},
	{"manga", "[-provider p] [-anilist id] <title>", "Search a manga catalog"},
	{"chapters", "[-provider p] [-scanlator name | -scanlators] <manga id>", "List chapters newest first, or the scanlators that released them"},
	{"pages", "[-provider p] <chapter id>", "List the page images of a chapter"},
	{"mappings", "[-delete provider:anilistId]", "List or forget remembered matches"},
	{"serve", "[-addr :8080]", "Run the HTTP API"},
	{"version", "", "Show version information"},
}

// ShowBeautifulHelp writes the formatted help message to w
func ShowBeautifulHelp(w io.Writer) {
	var b strings.Builder

	b.WriteString(titleStyle.Render("moopa - anime and manga provider resolver"))
	b.WriteString("\n")
	b.WriteString(subtitleStyle.Render("Match AniList titles to HiAnime, AniCrush and Comix and resolve their streams and pages."))
	b.WriteString("\n\n")

	writeSeparator(&b)
	b.WriteString(sectionTitleStyle.Render("Usage:"))
	b.WriteString("\n")
	b.WriteString(commandStyle.Render("  moopa ") + parameterStyle.Render("[global options] <command> [command options]"))
	b.WriteString("\n\n")

	writeSeparator(&b)
	b.WriteString(sectionTitleStyle.Render("Commands:"))
	b.WriteString("\n")
	for _, c := range HelpCommands {
		addEntry(&b, c.Name+" "+parameterStyle.Render(c.Args), c.Desc)
	}
	b.WriteString("\n")

	writeSeparator(&b)
	b.WriteString(sectionTitleStyle.Render("Global options:"))
	b.WriteString("\n")
	addEntry(&b, "-config <file>", "Read settings from file instead of ./moopa.yml or ~/.config/moopa/moopa.yml.")
	addEntry(&b, "-env <file>", "Load environment overrides from file instead of ./.env.")
	addEntry(&b, "-debug", "Enable debug logging with caller information.")
	addEntry(&b, "-json", "Print results as JSON instead of styled tables.")
	addEntry(&b, "-perf", "Print a timing report of upstream calls on exit.")
	addEntry(&b, "-help / -h", "Display this help message.")
	b.WriteString("\n")

	writeSeparator(&b)
	b.WriteString(sectionTitleStyle.Render("Examples:"))
	b.WriteString("\n")
	addEntry(&b, "moopa search -year 2023 \"Sousou no Frieren\"", "Match Frieren on HiAnime")
	addEntry(&b, "moopa episodes -provider anicrush -anilist 154587", "Sub and dub episodes of Frieren on AniCrush")
	addEntry(&b, "moopa source -server HD-2 -episode 1 107257/sub", "Resolve an HiAnime episode on HD-2")
	addEntry(&b, "moopa chapters \"r8k2|kagurabachi\"", "List Kagurabachi chapters on Comix")
	addEntry(&b, "MOOPA_SERVER_ADDR=:9000 moopa serve", "Serve the API on port 9000")
	b.WriteString("\n")

	writeSeparator(&b)
	b.WriteString(subtitleStyle.Render("Settings can also be given as MOOPA_ environment variables or in a .env file."))
	b.WriteString("\n")

	_, _ = fmt.Fprint(w, b.String())
}

func writeSeparator(b *strings.Builder) {
	b.WriteString(separatorStyle.Render(strings.Repeat("─", 80)))
	b.WriteString("\n")
}

func addEntry(b *strings.Builder, cmd, desc string) {
	b.WriteString(commandStyle.Render("  " + cmd))
	b.WriteString("\n")
	b.WriteString(descriptionStyle.Render("    " + desc))
	b.WriteString("\n")
}
