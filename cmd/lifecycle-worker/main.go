package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/prediction-core-poc/internal/lifecycle"
	lifecyclerepo "github.com/radieske/prediction-core-poc/internal/lifecycle/repo"
	"github.com/radieske/prediction-core-poc/internal/settlement"
	settlementrepo "github.com/radieske/prediction-core-poc/internal/settlement/repo"
	"github.com/radieske/prediction-core-poc/internal/shared/config"
	"github.com/radieske/prediction-core-poc/internal/shared/db"
	"github.com/radieske/prediction-core-poc/internal/shared/logger"
	"github.com/radieske/prediction-core-poc/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Conexão com banco de dados Postgres para eventos, predições e carteiras
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	// Métricas Prometheus: transições de lifecycle e resultados de settlement
	eventsLive := prometheus.NewCounter(prometheus.CounterOpts{Name: "lifecycle_events_live_total", Help: "eventos transicionados para live"})
	predsVoided := prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_predictions_voided_total", Help: "predições anuladas (auto-void)"})
	coinsRefunded := prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_coins_refunded_total", Help: "moedas estornadas"})
	sweepRuns := prometheus.NewCounter(prometheus.CounterOpts{Name: "lifecycle_sweep_runs_total", Help: "rodadas completadas"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "lifecycle_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(eventsLive, predsVoided, coinsRefunded, sweepRuns, errorsBy)

	sweeper := &lifecycle.Sweeper{
		Log:          log,
		Store:        lifecyclerepo.NewPostgres(pg),
		OpTimeout:    cfg.OpTimeout,
		OnTransition: func() { eventsLive.Inc() },
		OnError:      func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	settlementStore := settlementrepo.NewPostgres(pg)
	engine := &settlement.Engine{
		Log:        log,
		Store:      settlementStore,
		Audit:      settlementStore,
		OpTimeout:  cfg.OpTimeout,
		OnVoided:   func() { predsVoided.Inc() },
		OnRefunded: func(coins int64) { coinsRefunded.Add(float64(coins)) },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// Servidor HTTP para métricas Prometheus e healthcheck
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})
	log.Info("metrics/health listening", zap.String("port", cfg.MetricsPort))

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("lifecycle-worker started", zap.Duration("sweep_interval", cfg.SweepInterval))

	// Roda imediatamente na subida e depois a cada intervalo
	runOnce(ctx, log, sweeper, engine)
	sweepRuns.Inc()

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runOnce(ctx, log, sweeper, engine)
			sweepRuns.Inc()
		case <-ctx.Done():
			log.Info("lifecycle-worker stopped")
			return
		}
	}
}

// runOnce executa uma rodada: transições por tempo e, na sequência, o
// auto-void de eventos cancelados/adiados. Falha sistêmica em uma fase não
// impede a outra; a rodada seguinte refaz o que ficou para trás.
func runOnce(ctx context.Context, log *zap.Logger, sweeper *lifecycle.Sweeper, engine *settlement.Engine) {
	if ctx.Err() != nil {
		return
	}

	n, err := sweeper.Run(ctx, time.Now().UTC())
	if err != nil {
		log.Error("lifecycle sweep failed", zap.Error(err))
	} else if n > 0 {
		log.Info("lifecycle sweep done", zap.Int("events_live", n))
	}

	summaries, err := engine.Run(ctx)
	if err != nil {
		log.Error("settlement run failed", zap.Error(err))
		return
	}
	for _, s := range summaries {
		log.Info("settlement summary",
			zap.String("event_id", s.EventID),
			zap.String("event_status", s.Status),
			zap.Int("voided", s.VoidedCount),
			zap.Int64("refunded_coins", s.RefundedCoins),
		)
	}
}
