package service

import (
	"sort"
	"strings"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/fallback"
)

const (
	contextWindow   = 2
	maxFragments    = 10
	maxContextChars = 2500
	headLines       = 10
	hintWeight      = 5
)

var anchorsByCategory = map[domain.Category][]string{
	domain.CategoryLicense: {
		"inscri", "seccional", "subse", "categoria", "telefone", "situa",
		"endereço profissional", "endereco profissional",
	},
	domain.CategoryScreen: {
		"Data Base", "Venc", "Qtd", "Produto", "Sistema", "Tipo Operação",
		"Tipo de Operação", "Tipo Sistema", "Pesquisar por", "Pesquisa por",
		"Tipo:", "Cidade", "Detalhamento de saldos por parcelas",
		"Seleção de parcelas", "Selecao de parcelas", "Total Geral", "Total",
	},
}

// BuildContext cuts the fallback context out of lines. Hints with section
// priorities take precedence; otherwise windows around the anchors related
// to the missing keys are used.
func BuildContext(cat domain.Category, lines, missing []string, hints *fallback.Hints) string {
	if len(lines) == 0 {
		return ""
	}
	if hints != nil && (len(hints.PrioritySections) > 0 || len(hints.DeprioritizeSections) > 0) {
		if ctx := hintedContext(lines, hints); ctx != "" {
			return ctx
		}
	}
	return anchorContext(cat, lines, missing)
}

func anchorContext(cat domain.Category, lines, missing []string) string {
	anchors := lowerAll(anchorsByCategory[cat])
	if prefer := relatedAnchors(anchors, missing); len(prefer) > 0 {
		anchors = prefer
	}

	var picked []string
	for i, ln := range lines {
		if !containsAnyOf(strings.ToLower(ln), anchors) {
			continue
		}
		if frag := window(lines, i); frag != "" {
			picked = append(picked, frag)
		}
		if len(picked) >= maxFragments {
			break
		}
	}
	if len(picked) == 0 {
		picked = []string{strings.Join(lines[:min(headLines, len(lines))], "\n")}
	}

	out := make([]string, 0, len(picked))
	size := 0
	for _, frag := range picked {
		if size+len(frag) > maxContextChars {
			break
		}
		out = append(out, frag)
		size += len(frag)
	}
	return strings.Join(out, "\n---\n")
}

// relatedAnchors keeps anchors that contain a missing key or are contained in one
func relatedAnchors(anchors, missing []string) []string {
	var out []string
	for _, a := range anchors {
		for _, k := range missing {
			k = strings.ToLower(k)
			if strings.Contains(a, k) || strings.Contains(k, a) {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

type scoredLine struct {
	score int
	idx   int
}

func hintedContext(lines []string, hints *fallback.Hints) string {
	priority := lowerAll(hints.PrioritySections)
	demoted := lowerAll(hints.DeprioritizeSections)

	scored := make([]scoredLine, len(lines))
	for i, ln := range lines {
		low := strings.ToLower(ln)
		s := 0
		if containsAnyOf(low, priority) {
			s += hintWeight
		}
		if containsAnyOf(low, demoted) {
			s -= hintWeight
		}
		scored[i] = scoredLine{score: s, idx: i}
	}
	sort.Slice(scored, func(a, b int) bool {
		if scored[a].score != scored[b].score {
			return scored[a].score > scored[b].score
		}
		return scored[a].idx > scored[b].idx
	})

	type bounds struct{ lo, hi int }
	used := make(map[bounds]bool)
	var frags []string
	for _, sl := range scored {
		if len(frags) >= maxFragments {
			break
		}
		if sl.score <= 0 && len(frags) > 0 {
			break
		}
		b := bounds{max(0, sl.idx-contextWindow), min(len(lines), sl.idx+1+contextWindow)}
		if used[b] {
			continue
		}
		if frag := strings.TrimSpace(strings.Join(lines[b.lo:b.hi], "\n")); frag != "" {
			frags = append(frags, frag)
			used[b] = true
		}
	}
	if len(frags) == 0 {
		return ""
	}

	ctx := strings.Join(frags, "\n---\n")
	if len(ctx) > maxContextChars {
		ctx = truncateRunes(ctx, maxContextChars)
	}
	return ctx
}

func window(lines []string, i int) string {
	lo := max(0, i-contextWindow)
	hi := min(len(lines), i+1+contextWindow)
	return strings.TrimSpace(strings.Join(lines[lo:hi], "\n"))
}

// truncateRunes cuts s to at most n bytes without splitting a rune
func truncateRunes(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func containsAnyOf(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
