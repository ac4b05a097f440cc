package odds

import (
	"sort"

	"github.com/radieske/prediction-core-poc/internal/similarity"
	"github.com/radieske/prediction-core-poc/pkg/contracts/events"
)

// DefaultSourcePriority é a prioridade atribuída a fontes fora da tabela
// configurada (menor número = mais confiável).
const DefaultSourcePriority = 10

// Merger deduplica os registros de um ciclo de ingestão em um conjunto
// canônico de partidas, usando a tabela de prioridades por fonte para
// desempate. A tabela é injetada na construção, não há estado ambiente.
type Merger struct {
	validator  *Validator
	priorities map[string]int
	threshold  float64
}

// NewMerger cria o motor de merge com o validador e a tabela fonte -> prioridade.
func NewMerger(v *Validator, priorities map[string]int) *Merger {
	if priorities == nil {
		priorities = map[string]int{}
	}
	return &Merger{
		validator:  v,
		priorities: priorities,
		threshold:  similarity.DefaultThreshold,
	}
}

// Priority resolve a prioridade de uma fonte, com default para desconhecidas.
func (m *Merger) Priority(source string) int {
	if p, ok := m.priorities[source]; ok {
		return p
	}
	return DefaultSourcePriority
}

type accumulated struct {
	match    events.Match
	priority int
}

// Dedupe valida e funde os registros brutos de um esporte em um ciclo.
//
// Política de fusão (contrato economicamente relevante, não alterar):
//   - registro de fonte estritamente mais confiável substitui o acumulado
//     por inteiro, sem mistura;
//   - mesma prioridade: odds elemento a elemento pelo máximo (melhor preço
//     entre fontes igualmente confiáveis) e bookmaker_count somado;
//   - prioridade pior: dados descartados.
//
// A ordem do resultado é a ordem de primeira aparição de cada partida.
// Varredura linear: cardinalidade por ciclo é pequena (dezenas a centenas).
func (m *Merger) Dedupe(sport string, records []events.RawOddsRecord) []events.Match {
	valid := make([]events.RawOddsRecord, 0, len(records))
	for _, r := range records {
		if m.validator.Validate(sport, r) {
			valid = append(valid, r)
		}
	}

	// Ordenação estável: entre fontes de mesma prioridade vale a ordem de chegada.
	sort.SliceStable(valid, func(i, j int) bool {
		return m.Priority(valid[i].Source) < m.Priority(valid[j].Source)
	})

	twoWay := m.validator.Shape(sport) == TwoWay

	var accs []accumulated
	for _, r := range valid {
		cand := toMatch(sport, r, twoWay)
		prio := m.Priority(r.Source)

		idx := -1
		for i := range accs {
			if similarity.SameFixture(
				cand.HomeTeam, cand.AwayTeam,
				accs[i].match.HomeTeam, accs[i].match.AwayTeam,
				m.threshold,
			) {
				idx = i
				break
			}
		}

		if idx < 0 {
			accs = append(accs, accumulated{match: cand, priority: prio})
			continue
		}

		acc := &accs[idx]
		switch {
		case prio < acc.priority:
			// Fonte mais confiável vence por inteiro. Com a ordenação
			// ascendente acima, prio nunca é menor que a prioridade acumulada;
			// o ramo preserva a política caso a pré-ordenação mude.
			sources := acc.match.SourceCount + 1
			acc.match = cand
			acc.match.SourceCount = sources
			acc.priority = prio
		case prio == acc.priority:
			mergeBest(&acc.match, cand)
		default:
			// Fonte pior não contribui dados, mas confirma a partida.
			acc.match.SourceCount++
		}
	}

	out := make([]events.Match, len(accs))
	for i := range accs {
		out[i] = accs[i].match
	}
	return out
}

// toMatch converte um registro bruto validado em partida canônica.
// BookmakerCount ausente conta como 1: o próprio registro é uma casa.
func toMatch(sport string, r events.RawOddsRecord, twoWay bool) events.Match {
	books := 1
	if r.BookmakerCount != nil {
		books = *r.BookmakerCount
	}

	var draw *float64
	if !twoWay && r.Draw != nil {
		d := *r.Draw
		draw = &d
	}

	return events.Match{
		Sport:    sport,
		HomeTeam: r.HomeTeam,
		AwayTeam: r.AwayTeam,
		Odds: events.MatchOdds{
			Home: *r.HomeWin,
			Draw: draw,
			Away: *r.AwayWin,
		},
		BookmakerCount: books,
		SourceCount:    1,
		Source:         r.Source,
	}
}

// mergeBest aplica a fusão entre fontes de mesma prioridade: melhor preço por
// campo, bookmaker_count somado. Nunca fabrica odds: todo valor emitido veio
// de ao menos um registro validado.
func mergeBest(dst *events.Match, in events.Match) {
	if in.Odds.Home > dst.Odds.Home {
		dst.Odds.Home = in.Odds.Home
	}
	if in.Odds.Away > dst.Odds.Away {
		dst.Odds.Away = in.Odds.Away
	}
	switch {
	case dst.Odds.Draw == nil:
		dst.Odds.Draw = in.Odds.Draw
	case in.Odds.Draw != nil && *in.Odds.Draw > *dst.Odds.Draw:
		d := *in.Odds.Draw
		dst.Odds.Draw = &d
	}

	dst.BookmakerCount += in.BookmakerCount
	dst.SourceCount++
}
