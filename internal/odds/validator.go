package odds

import (
	"github.com/radieske/prediction-core-poc/pkg/contracts/events"
)

// MarketShape indica se o mercado 1x2 do esporte tem empate (3way) ou não (2way).
type MarketShape string

const (
	TwoWay   MarketShape = "2way"
	ThreeWay MarketShape = "3way"
)

// Constantes de validação herdadas do desenho original. São heurísticas
// ajustáveis, não garantias; mudanças devem ser explícitas, nunca silenciosas.
const (
	MinPrice = 1.01
	MaxPrice = 1000.0

	// Soma de probabilidade implícita (1/home + 1/away + 1/draw quando houver).
	// Abaixo do mínimo: odds generosas demais, provável erro de scrape.
	// Acima do máximo: margem de bookmaker implausível, também dado corrompido.
	MinImpliedSum = 0.90
	MaxImpliedSum = 1.50

	MinTeamNameLen = 2
	MaxTeamNameLen = 100
)

// Validator rejeita registros brutos malformados ou estatisticamente
// implausíveis antes que cheguem ao motor de merge. Nunca retorna erro:
// registro inválido é simplesmente descartado.
type Validator struct {
	shapes map[string]MarketShape
}

// NewValidator cria um validador com a tabela esporte -> formato de mercado.
// Esportes desconhecidos assumem 3way: empate ausente é tolerado, mas empate
// fora de faixa não é, então o default conservador é validar quando presente.
func NewValidator(shapes map[string]MarketShape) *Validator {
	if shapes == nil {
		shapes = map[string]MarketShape{}
	}
	return &Validator{shapes: shapes}
}

// Shape retorna o formato de mercado do esporte, default 3way.
func (v *Validator) Shape(sport string) MarketShape {
	if s, ok := v.shapes[sport]; ok {
		return s
	}
	return ThreeWay
}

// Validate decide se um registro bruto pode entrar no merge.
// Para esportes 2way, um preço de empate scrapado é lixo e é ignorado por
// completo (não participa nem da faixa nem da soma implícita).
func (v *Validator) Validate(sport string, r events.RawOddsRecord) bool {
	if !validName(r.HomeTeam) || !validName(r.AwayTeam) {
		return false
	}
	if r.HomeWin == nil || r.AwayWin == nil {
		return false
	}

	draw := r.Draw
	if v.Shape(sport) == TwoWay {
		draw = nil
	}

	if !inPriceRange(*r.HomeWin) || !inPriceRange(*r.AwayWin) {
		return false
	}
	if draw != nil && !inPriceRange(*draw) {
		return false
	}

	implied := 1 / *r.HomeWin + 1 / *r.AwayWin
	if draw != nil {
		implied += 1 / *draw
	}
	if implied < MinImpliedSum || implied > MaxImpliedSum {
		return false
	}

	return true
}

func validName(name string) bool {
	n := len([]rune(name))
	return n >= MinTeamNameLen && n <= MaxTeamNameLen
}

func inPriceRange(price float64) bool {
	return price >= MinPrice && price <= MaxPrice
}
