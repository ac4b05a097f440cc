package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/prediction-core-poc/internal/odds"
	"github.com/radieske/prediction-core-poc/internal/odds-processor/repository"
	"github.com/radieske/prediction-core-poc/pkg/contracts/events"
)

// MessageReader abstrai o consumo do tópico de entrada (satisfeito por *kafka.Reader).
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// MessageWriter abstrai a escrita em tópicos de saída (satisfeito por *kafka.Writer).
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// MatchRepo persiste o conjunto canônico de um ciclo.
type MatchRepo interface {
	ReplaceCycle(ctx context.Context, set events.MatchSet) error
	InsertHistory(ctx context.Context, set events.MatchSet) error
}

// BestPriceCache guarda o melhor preço corrente de cada partida.
type BestPriceCache interface {
	SetBest(ctx context.Context, sport, matchKey string, m events.Match) error
}

// Processor consome batches brutos do Kafka, valida e mescla em partidas
// canônicas, persiste, faz cache e publica o conjunto do ciclo.
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa.
type Processor struct {
	Log       *zap.Logger
	Reader    MessageReader
	Merger    *odds.Merger
	Repo      MatchRepo
	Cache     BestPriceCache
	Publisher MessageWriter
	DLQ       MessageWriter // opcional: batches indecodificáveis

	// Timeout por chamada externa (banco, cache, publicação). Uma escrita
	// travada não pode parar o loop de consumo.
	OpTimeout time.Duration

	OnConsumed func()       // métricas (counter++)
	OnMerged   func(n int)  // métricas: partidas canônicas emitidas
	OnDropped  func(n int)  // métricas: registros rejeitados pela validação
	OnPersist  func()       // métricas
	OnError    func(string) // métricas por fase
}

// Run inicia o loop principal de consumo e processamento das mensagens Kafka.
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			if p.OnError != nil {
				p.OnError("read")
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed() // callback de métrica: mensagem consumida
		}

		var batch events.RawOddsBatch
		if err := json.Unmarshal(m.Value, &batch); err != nil {
			p.Log.Warn("invalid batch", zap.Error(err))
			if p.OnError != nil {
				p.OnError("decode")
			}
			p.toDLQ(ctx, m)
			continue
		}

		p.processBatch(ctx, batch)
	}
}

// processBatch roda o ciclo completo de um batch: merge, persistência, cache
// e publicação. Cache e publicação são operações secundárias: falha nelas não
// desfaz a persistência.
func (p *Processor) processBatch(ctx context.Context, batch events.RawOddsBatch) {
	matches := p.Merger.Dedupe(batch.Sport, batch.Records)

	dropped := len(batch.Records)
	for _, m := range matches {
		dropped -= m.SourceCount
	}
	if dropped > 0 {
		// Rejeição de entrada não é erro: descarte silencioso com nota de debug.
		p.Log.Debug("records rejected by validation",
			zap.String("sport", batch.Sport),
			zap.String("cycle_id", batch.CycleID),
			zap.Int("dropped", dropped),
		)
		if p.OnDropped != nil {
			p.OnDropped(dropped)
		}
	}
	if p.OnMerged != nil {
		p.OnMerged(len(matches))
	}

	set := events.MatchSet{
		Sport:    batch.Sport,
		CycleID:  batch.CycleID,
		Matches:  matches,
		MergedAt: time.Now().UTC(),
	}

	// Persiste o conjunto canônico do ciclo (substituição, não mutação).
	opCtx, cancel := context.WithTimeout(ctx, p.opTimeout())
	err := p.Repo.ReplaceCycle(opCtx, set)
	cancel()
	if err != nil {
		p.Log.Warn("db replace cycle failed", zap.Error(err))
		if p.OnError != nil {
			p.OnError("db_replace")
		}
		return
	}
	opCtx, cancel = context.WithTimeout(ctx, p.opTimeout())
	err = p.Repo.InsertHistory(opCtx, set)
	cancel()
	if err != nil {
		p.Log.Warn("db insert history failed", zap.Error(err))
		if p.OnError != nil {
			p.OnError("db_history")
		}
		return
	}
	if p.OnPersist != nil {
		p.OnPersist() // callback de métrica: persistência concluída
	}

	// Atualiza o cache de melhores preços por partida.
	for _, m := range set.Matches {
		opCtx, cancel = context.WithTimeout(ctx, p.opTimeout())
		err = p.Cache.SetBest(opCtx, set.Sport, repository.MatchKey(m), m)
		cancel()
		if err != nil {
			p.Log.Warn("redis set failed", zap.Error(err))
			if p.OnError != nil {
				p.OnError("cache")
			}
			break // não bloqueia a publicação se falhar o cache
		}
	}

	// Publica o conjunto mesclado para quem persiste/divulga odds.
	b, err := json.Marshal(set)
	if err != nil {
		p.Log.Error("marshal match set", zap.Error(err))
		if p.OnError != nil {
			p.OnError("encode")
		}
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, p.opTimeout())
	defer cancel()
	msg := kafka.Message{
		Key:   []byte(set.Sport + ":" + set.CycleID),
		Value: b,
		Time:  time.Now(),
	}
	if err := p.Publisher.WriteMessages(pubCtx, msg); err != nil {
		p.Log.Warn("publish match set failed", zap.Error(err))
		if p.OnError != nil {
			p.OnError("publish")
		}
	}
}

// toDLQ envia a mensagem crua para a DLQ quando configurada.
func (p *Processor) toDLQ(ctx context.Context, m kafka.Message) {
	if p.DLQ == nil {
		return
	}
	dlqCtx, cancel := context.WithTimeout(ctx, p.opTimeout())
	defer cancel()
	if err := p.DLQ.WriteMessages(dlqCtx, kafka.Message{Key: m.Key, Value: m.Value, Time: time.Now()}); err != nil {
		p.Log.Warn("dlq write failed", zap.Error(err))
	}
}

func (p *Processor) opTimeout() time.Duration {
	if p.OpTimeout > 0 {
		return p.OpTimeout
	}
	return 5 * time.Second
}
