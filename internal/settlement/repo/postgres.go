package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/prediction-core-poc/internal/lifecycle"
	"github.com/radieske/prediction-core-poc/internal/settlement"
)

// Postgres implementa settlement.PredictionStore e settlement.AuditStore
// sobre as tabelas predictions, wallets, wallet_ledger e audit_logs.
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório de settlement.
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// ListVoidableEvents retorna eventos cancelados/adiados que ainda têm ao
// menos uma predição pendente.
func (p *Postgres) ListVoidableEvents(ctx context.Context) ([]settlement.VoidableEvent, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT e.id, e.status
		FROM events e
		WHERE e.status IN ($1, $2)
		  AND EXISTS (
			SELECT 1 FROM predictions pr
			WHERE pr.event_id = e.id AND pr.status = $3
		  )
		ORDER BY e.updated_at`,
		lifecycle.StatusCancelled, lifecycle.StatusPostponed, settlement.StatusPending,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []settlement.VoidableEvent
	for rows.Next() {
		var ev settlement.VoidableEvent
		if err := rows.Scan(&ev.EventID, &ev.Status); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ListPending retorna as predições pendentes de um evento.
func (p *Postgres) ListPending(ctx context.Context, eventID string) ([]settlement.Prediction, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, event_id, user_id, stake_coins
		FROM predictions
		WHERE event_id=$1 AND status=$2`,
		eventID, settlement.StatusPending,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []settlement.Prediction
	for rows.Next() {
		var pr settlement.Prediction
		if err := rows.Scan(&pr.ID, &pr.EventID, &pr.UserID, &pr.Stake); err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

// VoidAndRefund marca a predição como void e credita o stake, em uma única
// transação. O claim é o UPDATE condicional sobre status='pending': a
// predição que uma execução concorrente já tratou não afeta nenhuma linha e
// a transação inteira é desfeita — é esse o guarda contra estorno duplo.
func (p *Postgres) VoidAndRefund(ctx context.Context, pr settlement.Prediction) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE predictions
		SET status=$1, settled_at=NOW(), updated_at=NOW()
		WHERE id=$2 AND status=$3`,
		settlement.StatusVoid, pr.ID, settlement.StatusPending,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return settlement.ErrAlreadySettled
	}

	walletID, err := creditWallet(ctx, tx, pr.UserID, pr.Stake)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO wallet_ledger(id, wallet_id, operation_type, amount_coins, description)
		VALUES($1,$2,'REFUND',$3,$4)`,
		uuid.NewString(), walletID, pr.Stake, "auto-void:"+pr.ID,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// creditWallet incrementa o saldo do usuário com lock pessimista na linha da
// carteira, criando-a se ainda não existir.
func creditWallet(ctx context.Context, tx *sql.Tx, userID string, amount int64) (string, error) {
	var walletID string
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM wallets WHERE user_id=$1 FOR UPDATE`, userID,
	).Scan(&walletID)
	if err == sql.ErrNoRows {
		walletID = uuid.NewString()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO wallets(id, user_id, balance_coins, version) VALUES($1,$2,0,1)`,
			walletID, userID); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance_coins = balance_coins + $1, version = version + 1 WHERE id=$2`,
		amount, walletID); err != nil {
		return "", err
	}
	return walletID, nil
}

// Insert grava uma entrada de auditoria. Snapshots old/new vão como JSONB.
func (p *Postgres) Insert(ctx context.Context, e settlement.AuditEntry) error {
	oldValues, err := json.Marshal(e.OldValues)
	if err != nil {
		return err
	}
	newValues, err := json.Marshal(e.NewValues)
	if err != nil {
		return err
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO audit_logs(id, table_name, record_id, action, old_values, new_values, reason, changed_by, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		uuid.NewString(), e.TableName, e.RecordID, e.Action,
		oldValues, newValues, e.Reason, e.ChangedBy, time.Now().UTC(),
	)
	return err
}
