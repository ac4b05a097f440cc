package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/radieske/prediction-core-poc/internal/shared/config"
	"github.com/radieske/prediction-core-poc/internal/shared/logger"
	"github.com/radieske/prediction-core-poc/pkg/contracts/events"
)

var (
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	// Catálogo fixo de partidas simuladas. Cada fonte reporta a mesma partida
	// com grafia própria e, às vezes, com os lados trocados — é exatamente o
	// cenário que o merge precisa resolver.
	fixtureCatalog = []struct {
		home, away string
		variants   map[string][2]string // fonte -> grafias
		swapSides  map[string]bool      // fonte reporta mandante invertido
	}{
		{
			home: "Arsenal", away: "Chelsea",
			variants: map[string][2]string{
				"oddsportal":  {"Arsenal FC", "Chelsea FC"},
				"betexplorer": {"Arsenal", "Chelsea"},
				"flashscore":  {"Arsenal", "Chelsea"},
			},
		},
		{
			home: "Manchester United", away: "Liverpool",
			variants: map[string][2]string{
				"oddsportal":  {"Manchester United FC", "Liverpool FC"},
				"betexplorer": {"Man Utd", "Liverpool"},
				"flashscore":  {"Man Utd", "Liverpool"},
			},
			swapSides: map[string]bool{"flashscore": true},
		},
		{
			home: "Nottingham Forest", away: "Leicester City",
			variants: map[string][2]string{
				"oddsportal":  {"Nottingham Forest", "Leicester City"},
				"betexplorer": {"Nottingham", "Leicester"},
			},
		},
	}

	sources = []string{"oddsportal", "betexplorer", "flashscore"}

	// Métricas Prometheus para monitoramento de conexões e mensagens
	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scraper_ws_connections",
		Help: "Clientes WebSocket conectados",
	})
	wsMessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scraper_ws_messages_sent_total",
		Help: "Total de batches WS enviados",
	})
)

// Representa uma conexão de cliente WebSocket
// id: identificador único da conexão
// conn: ponteiro para a conexão WebSocket
type clientConn struct {
	id   string
	conn *websocket.Conn
}

// Estrutura responsável por gerenciar os clientes conectados via WebSocket
// e realizar broadcast de mensagens para todos eles.
type hub struct {
	mu      sync.RWMutex
	clients map[string]*clientConn
	log     *zap.Logger
}

// Cria uma nova instância de hub para gerenciar conexões
func newHub(log *zap.Logger) *hub {
	return &hub{
		clients: make(map[string]*clientConn),
		log:     log,
	}
}

// Adiciona um novo cliente ao hub e incrementa a métrica de conexões
func (h *hub) add(c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	wsConnections.Inc()
	h.log.Info("ws client connected", zap.String("client_id", c.id))
}

// Remove um cliente do hub e decrementa a métrica de conexões
func (h *hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		wsConnections.Dec()
		h.log.Info("ws client disconnected", zap.String("client_id", id))
	}
}

// Envia uma mensagem para todos os clientes conectados
func (h *hub) broadcast(v any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	msg, _ := json.Marshal(v)
	for id, c := range h.clients {
		c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Warn("ws write failed", zap.String("client_id", id), zap.Error(err))
			_ = c.conn.Close()
		} else {
			wsMessagesSent.Inc()
		}
	}
}

// gera número aleatório entre min e max
func rnd(min, max float64) float64 {
	return (rand.Float64() * (max - min)) + min
}

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

// buildBatch fabrica o batch de uma fonte para um ciclo, com margem de
// bookmaker realista (soma implícita um pouco acima de 1).
func buildBatch(source, cycleID string) events.RawOddsBatch {
	batch := events.RawOddsBatch{
		Sport:     "football",
		CycleID:   cycleID,
		ScrapedAt: time.Now().UTC(),
	}

	for _, fx := range fixtureCatalog {
		names, ok := fx.variants[source]
		if !ok {
			continue
		}
		home, away := names[0], names[1]
		if fx.swapSides[source] {
			home, away = away, home
		}

		// Preços coerentes: probabilidades justas + margem de ~6%
		pHome := rnd(0.25, 0.50)
		pDraw := rnd(0.20, 0.30)
		pAway := 1 - pHome - pDraw
		margin := 1.06

		batch.Records = append(batch.Records, events.RawOddsRecord{
			Source:         source,
			HomeTeam:       home,
			AwayTeam:       away,
			HomeWin:        fptr(round2(1 / (pHome * margin))),
			Draw:           fptr(round2(1 / (pDraw * margin))),
			AwayWin:        fptr(round2(1 / (pAway * margin))),
			BookmakerCount: iptr(1 + rand.Intn(20)),
		})
	}

	// Ruído ocasional: registro corrompido que a validação deve descartar
	if rand.Intn(100) < 20 {
		batch.Records = append(batch.Records, events.RawOddsRecord{
			Source:   source,
			HomeTeam: "X",
			AwayTeam: "Corrupted",
			HomeWin:  fptr(0.5),
			AwayWin:  fptr(1200),
		})
	}

	return batch
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(wsConnections, wsMessagesSent)

	h := newHub(log)

	// Gera e envia batches simulados (um por fonte) a cada ciclo de 10 segundos
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			cycleID := uuid.NewString()
			for _, source := range sources {
				h.broadcast(buildBatch(source, cycleID))
			}
		}
	}()

	// ==== MUX PÚBLICO (HTTP principal): /ws
	appMux := http.NewServeMux()

	appMux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("ws upgrade failed", zap.Error(err))
			return
		}
		id := fmt.Sprintf("%d", time.Now().UnixNano())
		c := &clientConn{id: id, conn: conn}
		h.add(c)

		// Goroutine para manter a conexão viva e remover cliente ao desconectar
		go func() {
			defer func() {
				h.remove(id)
				_ = conn.Close()
			}()
			_ = conn.SetReadDeadline(time.Time{})
			for {
				// Lê e descarta mensagens do cliente para manter o socket limpo
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})

	// ==== MUX DE MÉTRICAS (/healthz, /metrics)
	metricsMux := http.NewServeMux()
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsMux.Handle("/metrics", promhttp.Handler())

	// Servidor de métricas em goroutine
	go func() {
		metricsAddr := fmt.Sprintf(":%s", cfg.MetricsPort)
		log.Info("scraper simulator (metrics) running",
			zap.String("addr", metricsAddr),
			zap.String("paths", "/healthz,/metrics"),
		)
		if err := http.ListenAndServe(metricsAddr, metricsMux); err != nil {
			log.Fatal("metrics server error", zap.Error(err))
		}
	}()

	// Servidor público (WS)
	publicAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	log.Info("scraper simulator (public) running",
		zap.String("addr", publicAddr),
		zap.String("paths", "/ws"),
	)
	if err := http.ListenAndServe(publicAddr, appMux); err != nil {
		log.Fatal("public server error", zap.Error(err))
	}
}
