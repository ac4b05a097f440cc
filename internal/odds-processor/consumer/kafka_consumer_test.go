package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/prediction-core-poc/internal/odds"
	"github.com/radieske/prediction-core-poc/pkg/contracts/events"
)

// fakeReader entrega as mensagens enfileiradas e depois cancela o contexto,
// encerrando o loop de consumo.
type fakeReader struct {
	msgs   []kafka.Message
	cancel context.CancelFunc
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

type fakeWriter struct {
	msgs      []kafka.Message
	deadlines []bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	_, ok := ctx.Deadline()
	w.deadlines = append(w.deadlines, ok)
	w.msgs = append(w.msgs, msgs...)
	return nil
}

type fakeRepo struct {
	sets      []events.MatchSet
	deadlines []bool
}

func (r *fakeRepo) ReplaceCycle(ctx context.Context, set events.MatchSet) error {
	_, ok := ctx.Deadline()
	r.deadlines = append(r.deadlines, ok)
	r.sets = append(r.sets, set)
	return nil
}

func (r *fakeRepo) InsertHistory(ctx context.Context, _ events.MatchSet) error {
	_, ok := ctx.Deadline()
	r.deadlines = append(r.deadlines, ok)
	return nil
}

type fakeCache struct {
	keys      []string
	deadlines []bool
}

func (c *fakeCache) SetBest(ctx context.Context, _, matchKey string, _ events.Match) error {
	_, ok := ctx.Deadline()
	c.deadlines = append(c.deadlines, ok)
	c.keys = append(c.keys, matchKey)
	return nil
}

func validBatchBytes(t *testing.T, cycleID string) []byte {
	t.Helper()
	b, err := json.Marshal(events.RawOddsBatch{
		Sport:     "tennis",
		CycleID:   cycleID,
		ScrapedAt: time.Now().UTC(),
		Records: []events.RawOddsRecord{{
			Source:   "oddsportal",
			HomeTeam: "Alcaraz",
			AwayTeam: "Sinner",
			HomeWin:  f(1.90),
			AwayWin:  f(2.10),
		}},
	})
	if err != nil {
		t.Fatalf("marshal batch: %v", err)
	}
	return b
}

func f(v float64) *float64 { return &v }

func newTestProcessor(reader *fakeReader, repo *fakeRepo, cache *fakeCache, pub, dlq *fakeWriter) *Processor {
	p := &Processor{
		Log:       zap.NewNop(),
		Reader:    reader,
		Merger:    odds.NewMerger(odds.NewValidator(nil), nil),
		Repo:      repo,
		Cache:     cache,
		Publisher: pub,
	}
	if dlq != nil {
		p.DLQ = dlq
	}
	return p
}

func TestRun_UndecodableBatchGoesToDLQAndConsumptionContinues(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	raw := []byte(`{"sport": nope`)
	reader := &fakeReader{
		msgs: []kafka.Message{
			{Key: []byte("bad"), Value: raw},
			{Key: []byte("good"), Value: validBatchBytes(t, "cycle-2")},
		},
		cancel: cancel,
	}
	repo := &fakeRepo{}
	dlq := &fakeWriter{}
	p := newTestProcessor(reader, repo, &fakeCache{}, &fakeWriter{}, dlq)

	var errStages []string
	p.OnError = func(stage string) { errStages = append(errStages, stage) }

	if err := p.Run(ctx); err != context.Canceled {
		t.Fatalf("run ended with %v, want context.Canceled", err)
	}
	if len(dlq.msgs) != 1 || string(dlq.msgs[0].Value) != string(raw) {
		t.Fatalf("dlq messages = %+v, want the raw undecodable payload", dlq.msgs)
	}
	if len(errStages) != 1 || errStages[0] != "decode" {
		t.Errorf("error stages = %v, want [decode]", errStages)
	}
	// O batch seguinte é processado normalmente.
	if len(repo.sets) != 1 || repo.sets[0].CycleID != "cycle-2" {
		t.Errorf("persisted sets = %+v, want only cycle-2", repo.sets)
	}
}

func TestRun_NoDLQConfiguredStillContinues(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{
		msgs:   []kafka.Message{{Key: []byte("bad"), Value: []byte("not json")}},
		cancel: cancel,
	}
	p := newTestProcessor(reader, &fakeRepo{}, &fakeCache{}, &fakeWriter{}, nil)

	if err := p.Run(ctx); err != context.Canceled {
		t.Fatalf("run ended with %v, want context.Canceled", err)
	}
}

func TestProcessBatch_ExternalCallsCarryDeadline(t *testing.T) {
	repo := &fakeRepo{}
	cache := &fakeCache{}
	pub := &fakeWriter{}
	p := newTestProcessor(&fakeReader{}, repo, cache, pub, nil)

	batch := events.RawOddsBatch{
		Sport:   "tennis",
		CycleID: "cycle-1",
		Records: []events.RawOddsRecord{{
			Source:   "oddsportal",
			HomeTeam: "Alcaraz",
			AwayTeam: "Sinner",
			HomeWin:  f(1.90),
			AwayWin:  f(2.10),
		}},
	}
	p.processBatch(context.Background(), batch)

	// Replace + history no repositório, um SetBest por partida e a publicação:
	// nenhuma dessas chamadas pode rodar sem deadline.
	if len(repo.deadlines) != 2 {
		t.Fatalf("repo calls = %d, want 2", len(repo.deadlines))
	}
	for i, ok := range repo.deadlines {
		if !ok {
			t.Errorf("repo call %d ran without deadline", i)
		}
	}
	if len(cache.deadlines) != 1 || !cache.deadlines[0] {
		t.Errorf("cache deadlines = %v, want one deadline-bound call", cache.deadlines)
	}
	if len(pub.deadlines) != 1 || !pub.deadlines[0] {
		t.Errorf("publish deadlines = %v, want one deadline-bound call", pub.deadlines)
	}
}
