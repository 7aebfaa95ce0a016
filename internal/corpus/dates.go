package corpus

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DateUnknown is the normalized date used when a filename carries no
// recognizable date.
const DateUnknown = "unknown"

var (
	// 2020-Apr-30 style
	dateFullPattern = regexp.MustCompile(`(\d{4})-(\w{3})-(\d{1,2})`)
	// Apr-2020 style, day defaults to the 1st
	dateMonthYearPattern = regexp.MustCompile(`([A-Za-z]{3})-(\d{4})`)
	// 2020-04-30 style
	dateISOPattern = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
)

var monthNumbers = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// ExtractDate pulls a normalized YYYY-MM-DD date out of a transcript
// filename. Filenames in the corpus look like "2020-Apr-30-AAPL.txt",
// "Apr-2020-AAPL.txt" or "2020-04-30-AAPL.txt". Returns DateUnknown when
// no pattern matches.
func ExtractDate(filename string) string {
	if m := dateFullPattern.FindStringSubmatch(filename); m != nil {
		if month, ok := monthNumbers[strings.ToLower(m[2])]; ok {
			day, _ := strconv.Atoi(m[3])
			if day >= 1 && day <= 31 {
				return fmt.Sprintf("%s-%02d-%02d", m[1], month, day)
			}
		}
	}

	if m := dateISOPattern.FindStringSubmatch(filename); m != nil {
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			return fmt.Sprintf("%s-%02d-%02d", m[1], month, day)
		}
	}

	if m := dateMonthYearPattern.FindStringSubmatch(filename); m != nil {
		if month, ok := monthNumbers[strings.ToLower(m[1])]; ok {
			return fmt.Sprintf("%s-%02d-01", m[2], month)
		}
	}

	return DateUnknown
}

// QuarterFromDate maps a YYYY-MM-DD date to its calendar quarter,
// e.g. "Q2 2020". Returns "Unknown" for unparseable input.
func QuarterFromDate(date string) string {
	year, month, _, ok := splitDate(date)
	if !ok {
		return "Unknown"
	}
	quarter := (month-1)/3 + 1
	return fmt.Sprintf("Q%d %d", quarter, year)
}

// DateNum converts a YYYY-MM-DD date to a sortable integer (YYYYMMDD)
// used for numeric range filters in the vector store. Returns 0 for
// unknown dates.
func DateNum(date string) int64 {
	year, month, day, ok := splitDate(date)
	if !ok {
		return 0
	}
	return int64(year)*10000 + int64(month)*100 + int64(day)
}

func splitDate(date string) (year, month, day int, ok bool) {
	parts := strings.Split(date, "-")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil || year < 1900 {
		return 0, 0, 0, false
	}
	month, err = strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, 0, false
	}
	day, err = strconv.Atoi(parts[2])
	if err != nil || day < 1 || day > 31 {
		return 0, 0, 0, false
	}
	return year, month, day, true
}
