package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/duskhollow/realm/internal/chat"
	"github.com/duskhollow/realm/internal/config"
	"github.com/duskhollow/realm/internal/core/event"
	"github.com/duskhollow/realm/internal/data"
	"github.com/duskhollow/realm/internal/exchange"
	"github.com/duskhollow/realm/internal/gameloop"
	"github.com/duskhollow/realm/internal/inventory"
	"github.com/duskhollow/realm/internal/ledger"
	"github.com/duskhollow/realm/internal/metrics"
	"github.com/duskhollow/realm/internal/netio"
	"github.com/duskhollow/realm/internal/npcmgr"
	"github.com/duskhollow/realm/internal/persist"
	"github.com/duskhollow/realm/internal/resourcemgr"
	"github.com/duskhollow/realm/internal/router"
	"github.com/duskhollow/realm/internal/scripting"
	"github.com/duskhollow/realm/internal/tickclock"
	"github.com/duskhollow/realm/internal/validation"
	"github.com/duskhollow/realm/internal/zone"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func printBanner(serverName string, serverID int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              realmd  v0.1.0               \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m   authoritative tick-driven realm server  \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mrealm:\033[0m %s \033[90m(id %d)\033[0m\n\n", serverName, serverID)
}

func printSection(title string) {
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", 40-len(title)))
}

func printStat(label string, count int) {
	num := fmt.Sprintf("%d", count)
	dots := 36 - len(label) - len(num)
	if dots < 3 {
		dots = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dots), num)
}

func printOK(msg string)    { fmt.Printf("  \033[32m✓\033[0m %s\n", msg) }
func printReady(msg string) { fmt.Printf("  \033[32m▶\033[0m %s\n", msg) }

func run() error {
	cfgPath := "config/server.toml"
	if p := os.Getenv("REALM_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.ID)

	printSection("database")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	printOK("connected to postgres")

	if err := persist.RunMigrations(ctx, db.Pool); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	printOK("migrations applied")
	fmt.Println()

	repo := persist.NewRepo(db)

	printSection("data catalog")
	catalog, err := data.Load("data/yaml")
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	printStat("items", len(catalog.AllItems()))
	printStat("npc templates", len(catalog.AllNpcTemplates()))
	printStat("resource templates", len(catalog.AllResourceTemplates()))
	printStat("zones", len(catalog.Zones()))
	printStat("skills", len(catalog.AllSkills()))
	fmt.Println()

	scriptEngine, err := scripting.NewEngine("scripts/npc", log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer scriptEngine.Close()
	printOK("npc scripts loaded")

	reg := prometheus.NewRegistry()
	mx := metrics.New(reg)

	zones := zone.NewIndex(catalogZoneRecords(catalog))
	npcMgr := npcmgr.NewManager(catalogNpcTemplates(catalog))
	npcMgr.SetTickDurationMs(int64(cfg.Validation.TickDurationMs))
	npcMgr.SetDropModifier(func(templateID, itemID int32, baseChance float64) (float64, int32) {
		result := scriptEngine.ModifyDrop(scripting.DropContext{
			NpcTemplateID: templateID, ItemID: itemID, BaseChance: baseChance,
		})
		return result.ChanceMultiplier, result.QuantityBonus
	})
	resMgr := resourcemgr.NewManager(catalogResourceTemplates(catalog))

	invCatalog := &catalogAdapter{cat: catalog}
	invEngine := inventory.NewEngine(invCatalog)

	registry := router.NewRegistry()
	ldg := ledger.New(registry, invEngine)
	exEngine := exchange.NewEngine(ldg, int64(cfg.Exchange.BuyLimitWindow/time.Millisecond))
	exPolicy := exchangePolicy(cfg.Exchange, catalog)

	navmesh := &zoneNavmesh{zones: zones}
	movement := validation.NewMovement(cfg.Validation, navmesh)
	rateLimit := validation.NewRateLimiter(cfg.Validation)

	loader := router.NewStoreLoader(repo)
	rng := rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(cfg.Server.ID)))

	rt := router.New(registry, movement, rateLimit, invEngine, exEngine, exPolicy, ldg, invCatalog, loader, zones, scriptEngine, rng, log, mx)
	rt.NpcMgr = npcMgr

	clock := tickclock.New(time.Duration(cfg.Validation.TickDurationMs) * time.Millisecond)
	bus := event.NewBus()
	loop := gameloop.New(clock, gameloop.Config{SaveIntervalTicks: 25}, npcMgr, resMgr, zones,
		registry, &characterSaver{repo: repo, registry: registry}, bus, scriptEngine, rng, log, mx)

	masterSecret, err := netio.RandomMasterSecret()
	if err != nil {
		return fmt.Errorf("master secret: %w", err)
	}
	server := netio.NewServer(cfg.Network, cfg.Validation, masterSecret, log)

	server.OnMessage = func(sessionID uint64, raw []byte) {
		handleInbound(rt, server, cfg.Validation, sessionID, raw, log)
	}
	server.OnDisconnect = func(sessionID uint64) {
		if state, ok := registry.BySession(sessionID); ok {
			zones.Leave(state.ZoneID, state.CharacterID)
		}
		registry.Unbind(sessionID)
	}
	rt.Kick = func(sessionID uint64) {
		if sess, ok := server.Registry().Get(sessionID); ok {
			sess.Close()
		}
	}

	chatDir := &chatDirectory{registry: registry}
	chatAudit := &chatAuditLogger{log: log}
	chatDeliver := func(recipientCharID int64, channel chat.Channel, senderName, text string) {
		deliverChat(server, registry, recipientCharID, channel, senderName, text)
	}
	rt.Chat = chat.NewRouter(chatDir, zones, nopChatFilter{}, chatAudit, chatDeliver, log)

	rt.Broadcast = func(zoneID int32, kind string, payload map[string]any) {
		deliverToZone(server, zones, registry, zoneID, kind, payload)
	}
	loop.SetBroadcaster(func(zoneID int32, kind string, payload any) {
		deliverToZone(server, zones, registry, zoneID, kind, payload)
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", server)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:         cfg.Network.BindAddress,
		Handler:      mux,
		ReadTimeout:  cfg.Network.ReadTimeout,
		WriteTimeout: cfg.Network.WriteTimeout,
	}

	loopCtx, stopLoop := context.WithCancel(context.Background())
	go loop.Run(loopCtx)

	hsRepo := persist.NewHighscoreRepo(db)
	go runHighscoreRefresh(loopCtx, hsRepo, log)
	go runGaugeSampler(loopCtx, server, registry, mx)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server stopped", zap.Error(err))
		}
	}()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	printSection("ready")
	printReady(fmt.Sprintf("listening on %s", cfg.Network.BindAddress))
	printReady(fmt.Sprintf("tick rate %dms", cfg.Validation.TickDurationMs))
	fmt.Println()

	sig := <-shutdownCh
	log.Info("shutdown signal received", zap.String("signal", sig.String()))

	stopLoop()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	httpServer.Shutdown(shutdownCtx)

	drainAndSaveAll(shutdownCtx, repo, registry, log)
	log.Info("realmd stopped")
	return nil
}

// runHighscoreRefresh periodically rebuilds the highscores materialized
// view; this runs far less often than the save sweep since it scans every
// character rather than just connected ones.
func runHighscoreRefresh(ctx context.Context, repo *persist.HighscoreRepo, log *zap.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := repo.RefreshHighscores(ctx); err != nil {
				log.Error("highscore refresh failed", zap.Error(err))
			}
		}
	}
}

// runGaugeSampler periodically refreshes the connected-character and
// inbound-queue-depth gauges, which unlike tick/flag metrics have no single
// call site to update them from.
func runGaugeSampler(ctx context.Context, server *netio.Server, registry *router.Registry, mx *metrics.Metrics) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mx.SetConnectedCount(registry.Count())
			depth := 0
			for _, sess := range server.Registry().All() {
				depth += len(sess.InQueue)
			}
			mx.SetInQueueDepth(depth)
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
