package events

import "time"

// MatchOdds são as odds mescladas de uma partida canônica.
// Draw é ponteiro: esportes 2-way e fontes sem empate não informam o campo.
type MatchOdds struct {
	Home float64  `json:"home"`
	Draw *float64 `json:"draw,omitempty"`
	Away float64  `json:"away"`
}

// Match é o registro canônico e deduplicado de uma partida real em um ciclo
// de ingestão: melhores nomes conhecidos, odds mescladas e contagem de fontes.
// Produzido novo a cada ciclo, nunca mutado no lugar.
type Match struct {
	Sport          string    `json:"sport"`
	HomeTeam       string    `json:"home_team"`
	AwayTeam       string    `json:"away_team"`
	Odds           MatchOdds `json:"odds"`
	BookmakerCount int       `json:"bookmaker_count"`
	SourceCount    int       `json:"source_count"`
	Source         string    `json:"source"` // fonte vencedora (menor prioridade numérica)
}

// MatchSet é o conjunto canônico de partidas de um esporte em um ciclo.
// Publicado no tópico "match_updates".
type MatchSet struct {
	Sport    string    `json:"sport"`
	CycleID  string    `json:"cycle_id"`
	Matches  []Match   `json:"matches"`
	MergedAt time.Time `json:"merged_at"`
}
