package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeEventStore simula a tabela de eventos em memória.
type fakeEventStore struct {
	events    map[string]*Event
	order     []string
	failMark  map[string]error
	claimedBy map[string]bool // simula outra execução vencendo o claim
	listErr   error
}

func newFakeEventStore(events ...Event) *fakeEventStore {
	s := &fakeEventStore{
		events:    map[string]*Event{},
		failMark:  map[string]error{},
		claimedBy: map[string]bool{},
	}
	for i := range events {
		ev := events[i]
		s.events[ev.ID] = &ev
		s.order = append(s.order, ev.ID)
	}
	return s
}

func (s *fakeEventStore) ListScheduledDue(_ context.Context, now time.Time) ([]Event, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var due []Event
	for _, id := range s.order {
		ev := s.events[id]
		if ev.Status == StatusScheduled && !ev.StartTime.After(now) {
			due = append(due, *ev)
		}
	}
	return due, nil
}

func (s *fakeEventStore) MarkLive(_ context.Context, eventID string) (bool, error) {
	if err := s.failMark[eventID]; err != nil {
		return false, err
	}
	ev := s.events[eventID]
	if s.claimedBy[eventID] {
		ev.Status = StatusLive
	}
	if ev.Status != StatusScheduled {
		return false, nil
	}
	ev.Status = StatusLive
	return true, nil
}

func newTestSweeper(store EventStore) *Sweeper {
	return &Sweeper{Log: zap.NewNop(), Store: store}
}

func TestRun_TransitionsDueEvents(t *testing.T) {
	now := time.Now()
	store := newFakeEventStore(
		Event{ID: "ev-1", Status: StatusScheduled, StartTime: now.Add(-time.Second)},
		Event{ID: "ev-2", Status: StatusScheduled, StartTime: now.Add(time.Hour)},
		Event{ID: "ev-3", Status: StatusLive, StartTime: now.Add(-time.Hour)},
	)
	s := newTestSweeper(store)

	n, err := s.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("transitioned = %d, want 1", n)
	}
	if store.events["ev-1"].Status != StatusLive {
		t.Errorf("ev-1 status = %q, want live", store.events["ev-1"].Status)
	}
	if store.events["ev-2"].Status != StatusScheduled {
		t.Errorf("future event must stay scheduled, got %q", store.events["ev-2"].Status)
	}
}

func TestRun_SecondSweepIsNoop(t *testing.T) {
	now := time.Now()
	store := newFakeEventStore(
		Event{ID: "ev-1", Status: StatusScheduled, StartTime: now.Add(-time.Second)},
	)
	s := newTestSweeper(store)

	if _, err := s.Run(context.Background(), now); err != nil {
		t.Fatalf("first run: %v", err)
	}
	n, err := s.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if n != 0 {
		t.Errorf("second sweep transitioned %d events, want 0", n)
	}
}

func TestRun_RowFailureSkipsAndContinues(t *testing.T) {
	now := time.Now()
	store := newFakeEventStore(
		Event{ID: "ev-1", Status: StatusScheduled, StartTime: now.Add(-time.Minute)},
		Event{ID: "ev-2", Status: StatusScheduled, StartTime: now.Add(-time.Minute)},
	)
	store.failMark["ev-1"] = errors.New("connection reset")

	var errStages []string
	s := newTestSweeper(store)
	s.OnError = func(stage string) { errStages = append(errStages, stage) }

	n, err := s.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("row failure must not abort the sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("transitioned = %d, want 1", n)
	}
	if store.events["ev-2"].Status != StatusLive {
		t.Errorf("ev-2 must transition despite ev-1 failing")
	}
	if len(errStages) != 1 || errStages[0] != "mark_live" {
		t.Errorf("error stages = %v, want [mark_live]", errStages)
	}

	// A linha que falhou continua elegível para a próxima varredura.
	delete(store.failMark, "ev-1")
	if n, _ := s.Run(context.Background(), now); n != 1 {
		t.Errorf("retry sweep transitioned %d, want 1", n)
	}
}

func TestRun_LostClaimIsNotATransition(t *testing.T) {
	now := time.Now()
	store := newFakeEventStore(
		Event{ID: "ev-1", Status: StatusScheduled, StartTime: now.Add(-time.Second)},
	)
	// Outra execução leva a linha entre o ListScheduledDue e o MarkLive.
	store.claimedBy["ev-1"] = true

	transitions := 0
	s := newTestSweeper(store)
	s.OnTransition = func() { transitions++ }

	n, err := s.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("lost claim must not be an error: %v", err)
	}
	if n != 0 {
		t.Errorf("transitioned = %d, want 0", n)
	}
	if transitions != 0 {
		t.Errorf("transition callback fired %d times for a lost claim, want 0", transitions)
	}
}

func TestRun_ListFailureIsSystemic(t *testing.T) {
	store := newFakeEventStore()
	store.listErr = errors.New("storage unreachable")
	s := newTestSweeper(store)

	if _, err := s.Run(context.Background(), time.Now()); err == nil {
		t.Fatal("top-level query failure must propagate")
	}
}
