package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/prediction-core-poc/internal/odds"
	"github.com/radieske/prediction-core-poc/internal/odds-processor/cache"
	"github.com/radieske/prediction-core-poc/internal/odds-processor/consumer"
	"github.com/radieske/prediction-core-poc/internal/odds-processor/repository"
	sharedcache "github.com/radieske/prediction-core-poc/internal/shared/cache"
	"github.com/radieske/prediction-core-poc/internal/shared/config"
	"github.com/radieske/prediction-core-poc/internal/shared/db"
	sharedkafka "github.com/radieske/prediction-core-poc/internal/shared/kafka"
	"github.com/radieske/prediction-core-poc/internal/shared/logger"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Inicializa dependências: Postgres e Redis
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Instancia cache Redis e repositório Postgres para partidas canônicas
	ttl := 60 * time.Second
	rcache := cache.NewRedisCache(redisClient, ttl)
	repo := repository.NewPostgresRepo(pg)

	// Motor de validação + merge, com tabelas explícitas vindas da config
	validator := odds.NewValidator(cfg.SportMarkets)
	merger := odds.NewMerger(validator, cfg.SourcePriorities)

	// Configura o consumer Kafka (consumer group odds-processor)
	reader := sharedkafka.NewReader(cfg.KafkaBrokers, cfg.TopicRawOdds, "odds-processor")
	defer reader.Close()

	// Writers: conjunto mesclado e DLQ de batches indecodificáveis
	matchWriter := sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMatchUpdates)
	defer matchWriter.Close()

	var dlqWriter *kafka.Writer
	if cfg.TopicRawOddsDLQ != "" {
		dlqWriter = sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRawOddsDLQ)
		defer dlqWriter.Close()
	}

	// Métricas Prometheus para monitoramento do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_proc_batches_consumed_total", Help: "batches consumidos"})
	merged := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_proc_matches_merged_total", Help: "partidas canônicas emitidas"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_proc_records_rejected_total", Help: "registros rejeitados pela validação"})
	persist := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_proc_db_writes_total", Help: "escritas no banco (replace+history)"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "odds_proc_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, merged, dropped, persist, errorsBy)

	// Instancia o processor, conectando callbacks de métricas
	proc := &consumer.Processor{
		Log:       log,
		Reader:    reader,
		Merger:    merger,
		Repo:      repo,
		Cache:     rcache,
		Publisher: matchWriter,
		OpTimeout: cfg.OpTimeout,

		OnConsumed: func() { consumed.Inc() },
		OnMerged:   func(n int) { merged.Add(float64(n)) },
		OnDropped:  func(n int) { dropped.Add(float64(n)) },
		OnPersist:  func() { persist.Inc() },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}
	if dlqWriter != nil {
		proc.DLQ = dlqWriter
	}

	// Servidor HTTP para métricas e health check
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
			defer cancel()
			if err := pg.PingContext(ctx); err != nil {
				http.Error(w, "pg", http.StatusServiceUnavailable)
				return
			}
			if err := redisClient.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		addr := fmt.Sprintf(":%s", cfg.MetricsPort)
		log.Info("metrics/health listening", zap.String("addr", addr))
		_ = http.ListenAndServe(addr, mux)
	}()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("odds-processor started")
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("odds-processor stopped")
}
