package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rawblock/triarb-engine/internal/api"
	"github.com/rawblock/triarb-engine/internal/config"
	"github.com/rawblock/triarb-engine/internal/cost"
	"github.com/rawblock/triarb-engine/internal/db"
	"github.com/rawblock/triarb-engine/internal/detector"
	"github.com/rawblock/triarb-engine/internal/filter"
	"github.com/rawblock/triarb-engine/internal/governor"
	"github.com/rawblock/triarb-engine/internal/killswitch"
	"github.com/rawblock/triarb-engine/internal/ledger"
	"github.com/rawblock/triarb-engine/internal/metrics"
	"github.com/rawblock/triarb-engine/internal/priceclient"
	"github.com/rawblock/triarb-engine/internal/queue"
	"github.com/rawblock/triarb-engine/internal/telemetry"
	"github.com/rawblock/triarb-engine/internal/transport"
	"github.com/rawblock/triarb-engine/internal/triangle"
	"github.com/rawblock/triarb-engine/internal/venue"
	"github.com/rawblock/triarb-engine/pkg/models"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("FATAL: config load failed:", err)
		os.Exit(1)
	}

	log, err := telemetry.New(cfg.LogLevel)
	if err != nil {
		fmt.Println("FATAL: logger init failed:", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting triangular arbitrage engine",
		zap.Bool("tradingEnabled", cfg.TradingEnabled),
		zap.Bool("paperMode", cfg.PaperMode),
		zap.String("baseToken", cfg.BaseToken),
	)

	reg, err := venue.LoadRegistry(cfg.PoolsPath)
	if err != nil {
		log.Fatal("failed to load injected pool set", zap.Error(err))
	}
	log.Info("venue registry loaded", zap.Strings("venues", reg.Venues()))

	now := time.Now()
	led := ledger.New(cfg.CapitalBase, cfg.FeeReserve, now)
	breaker := ledger.NewBreaker()

	var store *db.PostgresStore
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		store, err = db.Connect(ctx, cfg.DatabaseURL, log)
		cancel()
		if err != nil {
			log.Warn("rollover store unavailable, continuing without cross-restart persistence", zap.Error(err))
			store = nil
		} else {
			defer store.Close()
			if err := store.InitSchema(context.Background()); err != nil {
				log.Warn("rollover schema init failed", zap.Error(err))
			} else if row, ok, err := store.LoadRollover(context.Background(), ledger.DayKey(now)); err != nil {
				log.Warn("failed to load today's rollover row", zap.Error(err))
			} else if ok {
				led.RestoreDaily(row.Day, row.DailyPnL, row.DailyTradeCount, row.ConsecutiveFailures)
				log.Info("restored today's rollover counters", zap.Float64("dailyPnL", row.DailyPnL), zap.Int("dailyTradeCount", row.DailyTradeCount))
			}
		}
	}

	metricsReg := prometheus.NewRegistry()
	m := metrics.New(metricsReg)

	wsHub := api.NewHub(log)
	go wsHub.Run()

	breaker.OnTrip(func(reason string, openedAt time.Time) {
		data := struct {
			Reason   string    `json:"reason"`
			OpenedAt time.Time `json:"openedAt"`
		}{Reason: reason, OpenedAt: openedAt}
		broadcastAlert(wsHub, log, models.NewAlert(models.AlertBreakerTrip, data, time.Now()))
	})

	var primary, secondary transport.Transport
	if cfg.PaperMode {
		primary = transport.NewPaperTransport("primary", log)
		secondary = transport.NewPaperTransport("secondary", log)
	} else {
		primary = transport.NewHTTPTransport("primary", cfg.PrimaryURL, cfg.JobDeadline)
		secondary = transport.NewHTTPTransport("secondary", cfg.SecondaryURL, cfg.JobDeadline)
	}

	q := queue.New(cfg.QueueCapacity, cfg.MinSubmitInterval, primary, secondary, led, log)
	q.OnOutcome(func(outcome models.SubmitOutcome, job models.SubmissionJob) {
		m.RecordOutcome(outcome.Kind)
		broadcastAlert(wsHub, log, models.NewAlert(models.AlertOutcome, outcome, time.Now()))

		if store != nil {
			snap := led.Snapshot(time.Now())
			row := db.RolloverRow{
				Day:                 ledger.DayKey(time.Now()),
				DailyPnL:            snap.DailyPnL,
				DailyTradeCount:     snap.DailyTradeCount,
				ConsecutiveFailures: snap.ConsecutiveFailures,
			}
			if err := store.SaveRollover(context.Background(), row); err != nil {
				log.Warn("failed to persist rollover row", zap.Error(err))
			}
		}
	})

	priceFeed := priceclient.New(cfg.PriceFeedURL, 2*time.Second)

	tipCfg := cost.Config{
		DefaultFeeRate:   cfg.DefaultFeeRate,
		TipPercentile:    cfg.TipPercentile,
		TipTargetFrac:    cfg.TipTargetFrac,
		TipCapGrossFrac:  cfg.TipCapGrossFrac,
		TipCapNetFrac:    cfg.TipCapNetFrac,
		TipAbsCap:        cfg.TipAbsCap,
		TipMin:           cfg.TipMin,
		GasMult:          cfg.GasMult,
		MarginMultiplier: cfg.MarginMultiplier,
	}

	detCfg := detector.Config{
		Base:         cfg.BaseToken,
		InputSize:    cfg.InputSize,
		TickInterval: cfg.TickInterval,
		FilterTh:     filter.DefaultThresholds(),
		TriangleCfg:  triangle.Config{MaxSkew: cfg.MaxSkew, RMax: cfg.MaxGrossReturn, MinSpreadPct: cfg.MinSpreadPct},
		CostCfg:      tipCfg,
		GovernorCfg: governor.Config{
			TradingEnabled: cfg.TradingEnabled,
			KillSwitchPath: cfg.KillSwitchPath,
			DailyLossLimit: cfg.DailyLossLimit,
			DailyTradeCap:  cfg.DailyTradeCap,
			FailCap:        cfg.FailCap,
			JobDeadline:    cfg.JobDeadline,
			Wallet:         cfg.Wallet,
		},
	}

	tips := detector.StaticTipSource{Snap: models.TipSnapshot{
		Percentiles: map[int]float64{50: cfg.TipMin * 2, 99: cfg.TipAbsCap / 2},
		CapturedAt:  now,
	}}

	det := detector.New(detCfg, priceFeed, reg, led, breaker, q, tips, m, log)
	det.OnCandidateQueued(func(a models.Alert) {
		broadcastAlert(wsHub, log, a)
	})

	watcher := killswitch.New(cfg.KillSwitchPath, breaker, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go watcher.Run(ctx)
	go q.Run(ctx)
	go det.Run(ctx)

	router := api.SetupRouter(led, breaker, q, wsHub, metricsReg, cfg.KillSwitchPath, cfg.PaperMode, log)
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}

	go func() {
		log.Info("control API listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("control API server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("control API shutdown error", zap.Error(err))
	}

	time.Sleep(200 * time.Millisecond) // let the queue's drain() release any outstanding reservations
	log.Info("shutdown complete")
}

func broadcastAlert(hub *api.Hub, log *zap.Logger, alert models.Alert) {
	payload, err := json.Marshal(alert)
	if err != nil {
		log.Warn("failed to marshal dashboard alert", zap.Error(err))
		return
	}
	hub.Broadcast(payload)
}
