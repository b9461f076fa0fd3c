package processor

import (
	"strings"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
)

// Classify decides which screen layout the text looks like. First match wins:
//
//  1. balance-detail title, or installment selection together with a total: C
//  2. "pesquisar por" together with "tipo:": B
//  3. operation type together with system type: A
//  4. any selection or total signal: C
//  5. otherwise A
func Classify(lines []string) domain.Layout {
	lower := make([]string, len(lines))
	for i, ln := range lines {
		lower[i] = strings.ToLower(ln)
	}
	text := strings.Join(lower, "\n")
	has := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(text, s) {
				return true
			}
		}
		return false
	}

	detail := has("detalhamento de saldos por parcelas")
	selection := has("seleção de parcelas", "selecao de parcelas")
	total := has("total geral") || reTotalWord.MatchString(text)

	switch {
	case detail || (selection && total):
		return domain.LayoutC
	case has("pesquisar por", "pesquisa por") && has("tipo:"):
		return domain.LayoutB
	case has("tipo operação", "tipo de operação") && has("tipo sistema", "tipo de sistema", "tipo do sistema"):
		return domain.LayoutA
	case selection || total:
		return domain.LayoutC
	}
	return domain.LayoutA
}
