package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Status de eventos persistidos. "finished" e "cancelled" são terminais:
// nenhuma transição sai deles. "cancelled" e "postponed" chegam do sync de
// fixtures upstream; este core apenas reage a eles.
const (
	StatusScheduled = "scheduled"
	StatusLive      = "live"
	StatusFinished  = "finished"
	StatusCancelled = "cancelled"
	StatusPostponed = "postponed"
)

// Event é a projeção mínima da linha de evento usada pela varredura.
type Event struct {
	ID        string
	HomeTeam  string
	AwayTeam  string
	StartTime time.Time
	Status    string
}

// EventStore é o acesso a eventos persistidos necessário ao sweeper.
type EventStore interface {
	// ListScheduledDue retorna eventos ainda "scheduled" com start_time <= now.
	ListScheduledDue(ctx context.Context, now time.Time) ([]Event, error)
	// MarkLive transiciona para "live" apenas se a linha ainda estiver
	// "scheduled" (update condicional, seguro para execuções concorrentes).
	// Retorna false quando nenhuma linha foi afetada: outra execução chegou antes.
	MarkLive(ctx context.Context, eventID string) (bool, error)
}

// Sweeper executa a transição scheduled -> live por tempo. Idempotente:
// rodar de novo sem novas linhas elegíveis é um no-op, porque a consulta só
// enxerga linhas ainda "scheduled".
type Sweeper struct {
	Log   *zap.Logger
	Store EventStore

	// Timeout por chamada externa; estouro conta como falha e o próximo
	// ciclo agendado faz o retry.
	OpTimeout time.Duration

	OnTransition func()            // métricas (counter++)
	OnError      func(stage string) // métricas por fase
}

// Run faz uma passada única sobre os eventos elegíveis.
// Falha em uma linha é logada e pulada, sem abortar as demais: a linha segue
// "scheduled" e vencida, então a próxima varredura a repesca. Falha da
// consulta de topo é sistêmica e propaga para o scheduler registrar a rodada.
func (s *Sweeper) Run(ctx context.Context, now time.Time) (int, error) {
	listCtx, cancel := context.WithTimeout(ctx, s.opTimeout())
	due, err := s.Store.ListScheduledDue(listCtx, now)
	cancel()
	if err != nil {
		if s.OnError != nil {
			s.OnError("list_due")
		}
		return 0, fmt.Errorf("list due scheduled events: %w", err)
	}

	transitioned := 0
	for _, ev := range due {
		if ctx.Err() != nil {
			// Rodada abortada entre iterações: o restante fica para o próximo ciclo.
			return transitioned, ctx.Err()
		}

		opCtx, cancel := context.WithTimeout(ctx, s.opTimeout())
		claimed, err := s.Store.MarkLive(opCtx, ev.ID)
		cancel()
		if err != nil {
			s.Log.Error("mark live failed",
				zap.String("event_id", ev.ID),
				zap.Time("start_time", ev.StartTime),
				zap.Error(err),
			)
			if s.OnError != nil {
				s.OnError("mark_live")
			}
			continue
		}
		if !claimed {
			// Outra varredura levou a linha entre a consulta e o update.
			s.Log.Debug("event already claimed", zap.String("event_id", ev.ID))
			continue
		}

		transitioned++
		if s.OnTransition != nil {
			s.OnTransition()
		}
		s.Log.Info("event live",
			zap.String("event_id", ev.ID),
			zap.String("home", ev.HomeTeam),
			zap.String("away", ev.AwayTeam),
		)
	}

	return transitioned, nil
}

func (s *Sweeper) opTimeout() time.Duration {
	if s.OpTimeout > 0 {
		return s.OpTimeout
	}
	return 5 * time.Second
}
