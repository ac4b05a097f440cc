package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/radieske/prediction-core-poc/internal/lifecycle"
)

// Postgres implementa lifecycle.EventStore sobre a tabela events.
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório de eventos.
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// ListScheduledDue busca em uma única passada os eventos ainda "scheduled"
// cujo horário de início já passou.
func (p *Postgres) ListScheduledDue(ctx context.Context, now time.Time) ([]lifecycle.Event, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, home_team, away_team, start_time, status
		FROM events
		WHERE status=$1 AND start_time <= $2
		ORDER BY start_time`,
		lifecycle.StatusScheduled, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []lifecycle.Event
	for rows.Next() {
		var ev lifecycle.Event
		if err := rows.Scan(&ev.ID, &ev.HomeTeam, &ev.AwayTeam, &ev.StartTime, &ev.Status); err != nil {
			return nil, err
		}
		due = append(due, ev)
	}
	return due, rows.Err()
}

// MarkLive transiciona o evento para "live" apenas se ainda estiver
// "scheduled". Zero linhas afetadas não é erro: outra execução chegou antes e
// o retorno false deixa o caller de fora da contagem de transições.
func (p *Postgres) MarkLive(ctx context.Context, eventID string) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE events SET status=$1, updated_at=NOW()
		WHERE id=$2 AND status=$3`,
		lifecycle.StatusLive, eventID, lifecycle.StatusScheduled,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
