package similarity

import (
	"github.com/agnivade/levenshtein"

	"github.com/radieske/prediction-core-poc/internal/normalize"
)

// DefaultThreshold é o limiar de similaridade para considerar dois registros
// como a mesma partida. Constante herdada do desenho original; ajuste por
// esporte é uma questão em aberto, não alterar silenciosamente.
const DefaultThreshold = 0.75

// Score calcula a similaridade normalizada entre dois nomes já canonicalizados:
// (maxLen - distância de edição) / maxLen, em [0,1].
// Dois vazios contam como 1 por simetria (entrada degenerada que a validação
// já deve ter barrado); um único vazio conta como 0.
func Score(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	la := len([]rune(a))
	lb := len([]rune(b))
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}

	dist := levenshtein.ComputeDistance(a, b)
	return float64(maxLen-dist) / float64(maxLen)
}

// SameFixture decide se dois registros descrevem a mesma partida real.
// Aceita também o pareamento com lados trocados, porque scrapers independentes
// discordam sobre qual time é o mandante.
func SameFixture(aHome, aAway, bHome, bAway string, threshold float64) bool {
	ah := normalize.Team(aHome)
	aa := normalize.Team(aAway)
	bh := normalize.Team(bHome)
	ba := normalize.Team(bAway)

	if Score(ah, bh) >= threshold && Score(aa, ba) >= threshold {
		return true
	}
	return Score(ah, ba) >= threshold && Score(aa, bh) >= threshold
}
