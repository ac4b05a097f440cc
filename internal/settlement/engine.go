package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Status de predições persistidas. Uma predição sai de "pending" no máximo
// uma vez; settled_at é preenchido exatamente quando o status != pending.
const (
	StatusPending = "pending"
	StatusWon     = "won"
	StatusLost    = "lost"
	StatusVoid    = "void"
	StatusCashout = "cashout"
)

// ErrAlreadySettled sinaliza que a predição já saiu de "pending" — outra
// execução (ou um ciclo anterior) chegou primeiro. Não é falha.
var ErrAlreadySettled = errors.New("prediction already settled")

// Prediction é a projeção mínima usada pelo auto-void.
type Prediction struct {
	ID      string
	EventID string
	UserID  string
	Stake   int64 // moedas, inteiro positivo
}

// VoidableEvent é um evento em estado terminal-inválido com predições pendentes.
type VoidableEvent struct {
	EventID string
	Status  string // "cancelled" ou "postponed"
}

// PredictionStore é o acesso transacional a predições e carteiras.
type PredictionStore interface {
	// ListVoidableEvents retorna eventos cancelled/postponed com ao menos
	// uma predição pendente.
	ListVoidableEvents(ctx context.Context) ([]VoidableEvent, error)
	// ListPending retorna as predições ainda pendentes do evento.
	ListPending(ctx context.Context, eventID string) ([]Prediction, error)
	// VoidAndRefund marca a predição como void e credita o stake de volta,
	// como unidade atômica: ou os dois efeitos acontecem, ou nenhum.
	// Retorna ErrAlreadySettled se a predição já saiu de "pending".
	VoidAndRefund(ctx context.Context, p Prediction) error
}

// AuditEntry é o registro imutável de uma ação de settlement.
// ChangedBy nulo indica ação do sistema.
type AuditEntry struct {
	TableName string
	RecordID  string
	Action    string
	OldValues map[string]any
	NewValues map[string]any
	Reason    string
	ChangedBy *string
}

// AuditStore grava a trilha de auditoria append-only.
type AuditStore interface {
	Insert(ctx context.Context, e AuditEntry) error
}

// ActionAutoVoid é a ação registrada na auditoria para estornos automáticos.
const ActionAutoVoid = "auto_void"

// EventSummary resume o settlement de um evento.
type EventSummary struct {
	EventID       string
	Status        string
	VoidedCount   int
	RefundedCoins int64
}

// Engine executa o auto-void: para cada evento cancelado/adiado com predições
// pendentes, estorna os stakes e grava uma entrada de auditoria por evento.
//
// Idempotência: o único guarda contra estorno duplo é a predição deixar de
// ser "pending" na MESMA transação que aplica o crédito — por isso o claim
// condicional fica dentro de VoidAndRefund, nunca aqui fora.
type Engine struct {
	Log   *zap.Logger
	Store PredictionStore
	Audit AuditStore

	OpTimeout time.Duration

	OnVoided   func()             // métricas (counter++)
	OnRefunded func(coins int64)  // métricas (counter += stake)
	OnError    func(stage string) // métricas por fase
}

// Run faz uma passada de settlement. Falhas por predição e por evento são
// logadas e puladas (operação secundária, recuperável no próximo ciclo,
// porque a predição continua "pending" até ser estornada com sucesso).
// Falha da consulta de topo propaga.
func (e *Engine) Run(ctx context.Context) ([]EventSummary, error) {
	listCtx, cancel := context.WithTimeout(ctx, e.opTimeout())
	voidable, err := e.Store.ListVoidableEvents(listCtx)
	cancel()
	if err != nil {
		if e.OnError != nil {
			e.OnError("list_voidable")
		}
		return nil, fmt.Errorf("list voidable events: %w", err)
	}

	var summaries []EventSummary
	for _, ev := range voidable {
		if ctx.Err() != nil {
			// Abortar entre eventos é seguro: cada predição é atômica e o
			// restante fica para o próximo ciclo.
			return summaries, ctx.Err()
		}

		sum, err := e.settleEvent(ctx, ev)
		if err != nil {
			e.Log.Error("settle event failed",
				zap.String("event_id", ev.EventID),
				zap.String("event_status", ev.Status),
				zap.Error(err),
			)
			if e.OnError != nil {
				e.OnError("settle_event")
			}
			continue
		}
		if sum.VoidedCount > 0 {
			summaries = append(summaries, sum)
		}
	}

	return summaries, nil
}

// settleEvent estorna as predições pendentes de um evento e grava a auditoria.
func (e *Engine) settleEvent(ctx context.Context, ev VoidableEvent) (EventSummary, error) {
	sum := EventSummary{EventID: ev.EventID, Status: ev.Status}

	listCtx, cancel := context.WithTimeout(ctx, e.opTimeout())
	pending, err := e.Store.ListPending(listCtx, ev.EventID)
	cancel()
	if err != nil {
		return sum, fmt.Errorf("list pending predictions: %w", err)
	}

	for _, p := range pending {
		opCtx, cancel := context.WithTimeout(ctx, e.opTimeout())
		err := e.Store.VoidAndRefund(opCtx, p)
		cancel()

		switch {
		case errors.Is(err, ErrAlreadySettled):
			// Outra execução tratou esta predição; nada a fazer.
			continue
		case err != nil:
			e.Log.Error("void and refund failed",
				zap.String("prediction_id", p.ID),
				zap.String("event_id", ev.EventID),
				zap.Int64("stake", p.Stake),
				zap.Error(err),
			)
			if e.OnError != nil {
				e.OnError("void_refund")
			}
			continue
		}

		sum.VoidedCount++
		sum.RefundedCoins += p.Stake
		if e.OnVoided != nil {
			e.OnVoided()
		}
		if e.OnRefunded != nil {
			e.OnRefunded(p.Stake)
		}
	}

	if sum.VoidedCount == 0 {
		return sum, nil
	}

	reason := fmt.Sprintf("Event %s: Auto-voided %d predictions, refunded %d coins",
		ev.Status, sum.VoidedCount, sum.RefundedCoins)

	auditCtx, cancel := context.WithTimeout(ctx, e.opTimeout())
	defer cancel()
	err = e.Audit.Insert(auditCtx, AuditEntry{
		TableName: "events",
		RecordID:  ev.EventID,
		Action:    ActionAutoVoid,
		OldValues: map[string]any{"pending_predictions": sum.VoidedCount},
		NewValues: map[string]any{
			"event_status":   ev.Status,
			"voided_count":   sum.VoidedCount,
			"refunded_coins": sum.RefundedCoins,
		},
		Reason:    reason,
		ChangedBy: nil,
	})
	if err != nil {
		// Estornos já aplicados ficam valendo; a auditoria perdida é logada
		// para reconciliação manual.
		e.Log.Error("audit insert failed",
			zap.String("event_id", ev.EventID),
			zap.String("reason", reason),
			zap.Error(err),
		)
		if e.OnError != nil {
			e.OnError("audit")
		}
	}

	e.Log.Info("event auto-voided",
		zap.String("event_id", ev.EventID),
		zap.String("event_status", ev.Status),
		zap.Int("voided", sum.VoidedCount),
		zap.Int64("refunded_coins", sum.RefundedCoins),
	)
	return sum, nil
}

func (e *Engine) opTimeout() time.Duration {
	if e.OpTimeout > 0 {
		return e.OpTimeout
	}
	return 5 * time.Second
}
