package processor

import "regexp"

// Value classes
var (
	reUF       = regexp.MustCompile(`\b(AC|AL|AP|AM|BA|CE|DF|ES|GO|MA|MG|MS|MT|PA|PB|PE|PI|PR|RJ|RN|RO|RR|RS|SC|SE|SP|TO)\b`)
	rePhone    = regexp.MustCompile(`\(?\d{2}\)?\s?\d{4,5}-?\d{4}`)
	reSmallInt = regexp.MustCompile(`\b\d{1,3}\b`)
	reRegNum   = regexp.MustCompile(`\b\d{5,7}\b`)
	reDate     = regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b`)
	reMoney    = regexp.MustCompile(`\b\d{1,3}(?:\.\d{3})*,\d{2}\b`)
)

// License card
var (
	reRegAfterLabel    = regexp.MustCompile(`(?i)Inscri(?:ç|c)[aã]o(?:\s+n[º°o]\.?)?[\s:.\-]*(\d{5,7})\b`)
	reSubsection       = regexp.MustCompile(`(?i)Subse(?:ç|c)[aã]o[:\s-]*([\wÀ-ÿ \-]+)`)
	reSectionalCouncil = regexp.MustCompile(`(?i)(CONSELHO\s+SECCIONAL\s*-\s*[\wÀ-ÿ \-]+)`)
	rePostalTail       = regexp.MustCompile(`(?i)\bCEP\b.*$`)
	reAddressEnd       = regexp.MustCompile(`\bCEP\b|\bBrasil\b`)
	reNonDigit         = regexp.MustCompile(`\D`)
	reOnlyDigits       = regexp.MustCompile(`^\d+$`)
)

// Screen layouts
var (
	reNextLabel     = regexp.MustCompile(`(?i)\s*(?:\bProduto\b|\bSistema\b|\bTipo\s+(?:de\s+)?Opera?[çc][aã]o\b|\bTipo\s+(?:d[eo]\s+)?Sistema\b|\bCidade\b)`)
	reSystemType    = regexp.MustCompile(`(?i)\bTipo\s+(?:d[eo]\s+)?Sistema\b.*$`)
	reQtyFallback   = regexp.MustCompile(`(?i)Qt(?:d(?:e|\.)?)?\s*(?:Parc(?:elas)?)?[:\s]*([0-9]{1,3})`)
	reProduct       = regexp.MustCompile(`(?i)Produto[:\s]*(.+)$`)
	reProductNext   = regexp.MustCompile(`^([A-Za-zÀ-ÿ0-9/ \-]{3,})`)
	reSystem        = regexp.MustCompile(`(?i)Sistema[:\s]*(.+)$`)
	reSystemNext    = regexp.MustCompile(`^([A-Za-zÀ-ÿ0-9/ \-]{2,})`)
	reOperationType = regexp.MustCompile(`(?i)Tipo\s+(?:de\s+)?Opera?[çc][aã]o[:\s]*(.+)$`)
	reOperationCut  = regexp.MustCompile(`(?i)\s*Tipo\s+(?:d[eo]\s+)?Sistema`)
	reSystemKind    = regexp.MustCompile(`(?i)Tipo\s+(?:d[eo]\s+)?Sistema[:\s]*(.+)$`)
	reWholeLine     = regexp.MustCompile(`^(.+)$`)

	reSearchBy      = regexp.MustCompile(`(?i)Pesquisar?\s+por[:\s]*([A-Za-zÀ-ÿ/ ]+)`)
	reSearchType    = regexp.MustCompile(`(?i)Tipo:\s*([A-Za-zÀ-ÿ/ ]+)`)
	reLeadingWords  = regexp.MustCompile(`^([A-Za-zÀ-ÿ/ ]+)`)
	reCity          = regexp.MustCompile(`Cidade[:\s]*([A-Za-zÀ-ÿ\-]+(?:\s+[A-Za-zÀ-ÿ\-]+)*(?:\s\([A-Z]{2}\))?)`)
	reCityNext      = regexp.MustCompile(`^([A-Za-zÀ-ÿ\-]+(?:\s+[A-Za-zÀ-ÿ\-]+)*(?:\s\([A-Z]{2}\))?)`)
	reSystemWord    = regexp.MustCompile(`Sistema[:\s]*([A-Za-zÀ-ÿ]+)`)
	reLeadingLetter = regexp.MustCompile(`^([A-Za-zÀ-ÿ]+)`)

	reSelection     = regexp.MustCompile(`(?i)(Vencidas|Vencidos|Pagas?|Pendentes?)`)
	reSelectionWord = regexp.MustCompile(`(?i)\b(Vencidas|Vencidos|Pagas?|Pendentes?)\b`)
	reTotalLabel    = regexp.MustCompile(`(?i)Total\s+de\s+parcelas[:\s]*(` + reMoney.String() + `)`)
	reTotalWord     = regexp.MustCompile(`\btotal\b`)
)
