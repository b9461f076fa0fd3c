package processor

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
)

// inferenceWindow bounds how many lines category inference reads
const inferenceWindow = 120

var licenseSignals = regexp.MustCompile(`(?i)\bOAB\b|inscri|seccional|subse|categoria|situa|endere[cç]o profissional|conselho seccional`)

// InferCategory guesses the category from the file name, then the first lines
// of text. Screens are the default.
func InferCategory(filename string, lines []string) domain.Category {
	if strings.Contains(strings.ToLower(filepath.Base(filename)), "oab") {
		return domain.CategoryLicense
	}

	head := lines[:min(inferenceWindow, len(lines))]
	if licenseSignals.MatchString(strings.ToLower(strings.Join(head, "\n"))) {
		return domain.CategoryLicense
	}
	return domain.CategoryScreen
}

// InferScreenType guesses the screen sub-type from a file name. It returns ""
// when nothing matches.
func InferScreenType(filename string) domain.ScreenType {
	n := strings.ToLower(filepath.Base(filename))
	switch {
	case strings.Contains(n, "detalh"), strings.Contains(n, "parcel"):
		return domain.ScreenBalanceDetails
	case strings.Contains(n, "consulta"), strings.Contains(n, "cobranc"):
		return domain.ScreenBillingLookup
	case strings.Contains(n, "operac"):
		return domain.ScreenOperation
	}
	return ""
}
