package repository

import (
	"context"
	"database/sql"

	"github.com/radieske/prediction-core-poc/internal/normalize"
	"github.com/radieske/prediction-core-poc/pkg/contracts/events"
)

// PostgresRepo persiste o conjunto canônico de partidas de cada ciclo.
// DB: conexão com o banco de dados
type PostgresRepo struct {
	DB *sql.DB
}

// NewPostgresRepo retorna uma instância de repositório Postgres.
func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// MatchKey gera a chave estável de uma partida a partir dos nomes
// canonicalizados, tolerante a variações de grafia entre fontes.
func MatchKey(m events.Match) string {
	return normalize.Team(m.HomeTeam) + "|" + normalize.Team(m.AwayTeam)
}

// ReplaceCycle substitui o conjunto corrente do esporte pelo conjunto recém
// mesclado, em uma transação: o Match é produzido novo a cada ciclo, nunca
// mutado no lugar.
func (r *PostgresRepo) ReplaceCycle(ctx context.Context, set events.MatchSet) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM matches_current WHERE sport=$1`, set.Sport); err != nil {
		return err
	}

	const q = `
		INSERT INTO matches_current
		  (sport, match_key, home_team, away_team, home_odd, draw_odd, away_odd,
		   bookmaker_count, source_count, source, cycle_id, updated_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`
	for _, m := range set.Matches {
		if _, err := tx.ExecContext(ctx, q,
			set.Sport, MatchKey(m), m.HomeTeam, m.AwayTeam,
			m.Odds.Home, drawOrNull(m.Odds.Draw), m.Odds.Away,
			m.BookmakerCount, m.SourceCount, m.Source,
			set.CycleID, set.MergedAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// InsertHistory registra o conjunto do ciclo no histórico de odds.
func (r *PostgresRepo) InsertHistory(ctx context.Context, set events.MatchSet) error {
	const q = `
		INSERT INTO matches_history
		  (sport, match_key, home_odd, draw_odd, away_odd, bookmaker_count, cycle_id, merged_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7,$8)
	`
	for _, m := range set.Matches {
		if _, err := r.DB.ExecContext(ctx, q,
			set.Sport, MatchKey(m),
			m.Odds.Home, drawOrNull(m.Odds.Draw), m.Odds.Away,
			m.BookmakerCount, set.CycleID, set.MergedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

func drawOrNull(d *float64) any {
	if d == nil {
		return nil
	}
	return *d
}
