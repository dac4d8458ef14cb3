package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Ani-Moopa/moopa-resolver/internal/models"
)

var airedDatePattern = regexp.MustCompile(`([A-Za-z]+)\s+(\d{1,2}),\s*(\d{4})`)

var monthIndex = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// parseAiredDate parses dates like "Jul 4, 2025". Unparseable input yields the zero date.
func parseAiredDate(s string) models.StartDate {
	m := airedDatePattern.FindStringSubmatch(s)
	if m == nil {
		return models.StartDate{}
	}
	name := strings.ToLower(m[1])
	if len(name) > 3 {
		name = name[:3]
	}
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	return models.StartDate{Year: year, Month: monthIndex[name], Day: day}
}
