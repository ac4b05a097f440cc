package topics

const (
	// Odds brutas (scraper -> core)
	RawOdds = "raw_odds"

	// Partidas canônicas mescladas (core -> publicação)
	MatchUpdates = "match_updates"

	// DLQ para batches indecodificáveis
	RawOddsDLQ = "raw_odds_dlq"
)
