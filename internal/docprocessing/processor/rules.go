package processor

import (
	"regexp"
	"strings"
)

// FieldRule describes how one field is located and captured. Rules are
// plain data so each field can be exercised on its own.
type FieldRule struct {
	Key string
	// Anchors locate the first line containing any of them, case-insensitively.
	Anchors []string
	// Mask is blanked out of every line before anchoring and capture.
	Mask *regexp.Regexp
	// Pattern is a value class (date, money, integer) searched after the
	// label on the anchor line, then on the next line.
	Pattern *regexp.Regexp
	// Capture takes group 1 from the anchor line.
	Capture *regexp.Regexp
	// NextCapture takes group 1 from the following line when Capture yields nothing.
	NextCapture *regexp.Regexp
	// Cut truncates captured text at its first match.
	Cut *regexp.Regexp
	// Trim is the cutset stripped from captured text after Cut.
	Trim string
	// Fallback runs over the whole document when the anchor path found nothing.
	Fallback func(d *document) string
	// Custom replaces the anchor path entirely.
	Custom func(d *document) string
}

// Apply runs the rule against lines
func (r FieldRule) Apply(lines []string) string {
	return r.apply(newDocument(lines))
}

func (r FieldRule) apply(d *document) string {
	if r.Custom != nil {
		return r.Custom(d)
	}

	view := d
	if r.Mask != nil {
		view = d.masked(r.Mask)
	}

	v := ""
	if i := findLine(view.lower, r.Anchors...); i >= 0 {
		v = r.capture(view, i)
	}
	if v == "" && r.Fallback != nil {
		v = r.Fallback(d)
	}
	return v
}

func (r FieldRule) capture(d *document, i int) string {
	if r.Pattern != nil {
		return valueAfterLabel(d.lines[i], r.Pattern, d.next(i))
	}

	v := r.clean(group1(r.Capture, d.lines[i]))
	if v == "" && r.NextCapture != nil && d.hasNext(i) {
		v = r.clean(group1(r.NextCapture, d.next(i)))
	}
	return v
}

func (r FieldRule) clean(s string) string {
	if r.Cut != nil {
		if loc := r.Cut.FindStringIndex(s); loc != nil {
			s = s[:loc[0]]
		}
	}
	s = strings.TrimSpace(s)
	if r.Trim != "" {
		s = strings.Trim(s, r.Trim)
	}
	return s
}

// masked returns a view with re blanked out of every line
func (d *document) masked(re *regexp.Regexp) *document {
	lines := make([]string, len(d.lines))
	for i, ln := range d.lines {
		lines[i] = re.ReplaceAllString(ln, "")
	}
	return newDocument(lines)
}

func group1(re *regexp.Regexp, s string) string {
	if re == nil {
		return ""
	}
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// nthDate returns the first date for n=1, the second for n=2 when the
// document has at least two, and otherwise the last date.
func nthDate(n int) func(d *document) string {
	return func(d *document) string {
		dates := reDate.FindAllString(d.text, -1)
		switch {
		case len(dates) == 0:
			return ""
		case n == 1:
			return dates[0]
		case n == 2 && len(dates) >= 2:
			return dates[1]
		}
		return dates[len(dates)-1]
	}
}

func quantityAnywhere(d *document) string {
	return group1(reQtyFallback, d.text)
}

// selectionNearAnchor looks for an installment status in the window
// around the selection label.
func selectionNearAnchor(d *document) string {
	i := findLine(d.lower, "Seleção de parcelas", "Selecao de parcelas")
	if i < 0 {
		return ""
	}
	win := strings.Join(d.lines[max(0, i-1):min(len(d.lines), i+3)], " ")
	return capitalize(group1(reSelection, win))
}

func selectionAnywhere(d *document) string {
	if v := selectionNearAnchor(d); v != "" {
		return v
	}
	return capitalize(group1(reSelectionWord, d.text))
}

func firstTotalLine(d *document) string {
	for i, low := range d.lower {
		if strings.Contains(low, "total") {
			if m := reMoney.FindString(d.lines[i]); m != "" {
				return m
			}
		}
	}
	return ""
}

// totalFromFooter prefers an explicit total label, then the last twelve
// lines bottom-up, then the last amount in the document.
func totalFromFooter(d *document) string {
	if v := group1(reTotalLabel, d.text); v != "" {
		return v
	}

	for i := len(d.lines) - 1; i >= max(0, len(d.lines)-12); i-- {
		if strings.Contains(d.lower[i], "total") {
			if m := reMoney.FindString(d.lines[i]); m != "" {
				return m
			}
		}
	}

	if all := reMoney.FindAllString(d.text, -1); len(all) > 0 {
		return all[len(all)-1]
	}
	return ""
}

func referenceDate(d *document) string {
	for i, low := range d.lower {
		if strings.Contains(low, "refer") {
			if v := valueAfterLabel(d.lines[i], reDate, d.next(i)); v != "" {
				return v
			}
		}
	}
	return reDate.FindString(d.text)
}
