package normalize

import "strings"

// affixTokens são afixos comuns de clubes, removidos como palavra inteira para
// que "Arsenal FC" e "Arsenal" comparem igual entre fontes.
var affixTokens = map[string]bool{
	"fc":        true,
	"afc":       true,
	"cf":        true,
	"sc":        true,
	"ac":        true,
	"club":      true,
	"city":      true,
	"town":      true,
	"wanderers": true,
	"rovers":    true,
	"albion":    true,
	"forest":    true,
	"hotspur":   true,
	"inter":     true,
}

// aliasTokens mapeia variantes comuns para a forma curta usada pelas fontes,
// ex: "Manchester United" e "Man Utd" reduzem ambos para "man utd".
var aliasTokens = map[string]string{
	"united":     "utd",
	"manchester": "man",
	"borussia":   "b",
	"atletico":   "atl",
	"sporting":   "sp",
	"real":       "r",
}

// Team canonicaliza um nome de time para comparação entre fontes:
// minúsculas, pontuação removida, espaços colapsados, afixos de clube
// descartados e variantes mapeadas. Se a remoção de afixos esvaziar o nome
// (ex: "Inter"), mantém a forma limpa anterior à remoção.
// Entrada vazia retorna string vazia. Função pura, sem efeitos colaterais.
func Team(raw string) string {
	cleaned := clean(raw)
	if cleaned == "" {
		return ""
	}

	tokens := strings.Fields(cleaned)
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if affixTokens[tok] {
			continue
		}
		if alias, ok := aliasTokens[tok]; ok {
			tok = alias
		}
		out = append(out, tok)
	}

	if len(out) == 0 {
		return cleaned
	}
	return strings.Join(out, " ")
}

// clean aplica minúsculas, troca pontuação por espaço e colapsa espaços.
func clean(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127 {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
