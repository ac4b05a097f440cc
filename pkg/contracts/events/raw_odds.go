package events

import "time"

// RawOddsRecord é o registro bruto de odds de uma partida, produzido pela camada
// de scraping para uma fonte específica. Campos de preço são ponteiros porque
// fontes diferentes omitem campos diferentes; a validação acontece adiante.
type RawOddsRecord struct {
	Source         string   `json:"source"`
	HomeTeam       string   `json:"home_team"`
	AwayTeam       string   `json:"away_team"`
	HomeWin        *float64 `json:"home_win,omitempty"`
	Draw           *float64 `json:"draw,omitempty"`
	AwayWin        *float64 `json:"away_win,omitempty"`
	BookmakerCount *int     `json:"bookmaker_count,omitempty"`
}

// RawOddsBatch agrupa os registros coletados em um ciclo de scraping.
// Publicado no tópico "raw_odds"; efêmero, nunca persistido como está.
type RawOddsBatch struct {
	Sport     string          `json:"sport"`
	CycleID   string          `json:"cycle_id"`
	ScrapedAt time.Time       `json:"scraped_at"`
	Records   []RawOddsRecord `json:"records"`
}
