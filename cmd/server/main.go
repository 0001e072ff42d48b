package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/chartermatch/internal/api"
	"github.com/ignite/chartermatch/internal/config"
	"github.com/ignite/chartermatch/internal/extraction"
	"github.com/ignite/chartermatch/internal/geocode"
	"github.com/ignite/chartermatch/internal/graph"
	"github.com/ignite/chartermatch/internal/livelog"
	"github.com/ignite/chartermatch/internal/matching"
	"github.com/ignite/chartermatch/internal/oracle"
	"github.com/ignite/chartermatch/internal/outbound"
	"github.com/ignite/chartermatch/internal/pipeline"
	"github.com/ignite/chartermatch/internal/store"
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from stale processes occupying the port.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

func main() {
	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║  CharterMatch Broker Server (cmd/server/main.go)          ║")
	log.Println("║  Mailbox ingest, GPT extraction, ship/cargo matching      ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")

	// Load configuration
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("MONGO_URI") != "" {
		log.Println("[config] MONGO_URI env override active")
	}

	// Pre-flight check: verify the target port is available
	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	if err := checkPortAvailable(host, port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}
	log.Printf("Pre-flight check passed: port %d is available", port)

	ctx, cancel := context.WithCancel(context.Background())

	// Operator log, streamed to dashboards over /events
	hub := livelog.NewHub()
	go hub.Run()
	olog := livelog.New(hub)

	// Document store
	st, err := store.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		log.Fatalf("Failed to connect to document store: %v", err)
	}
	if err := st.EnsureIndexes(ctx); err != nil {
		log.Fatalf("Failed to ensure indexes: %v", err)
	}
	log.Printf("Document store connected (database %s), indexes ensured", cfg.Mongo.Database)

	// Graph mailbox: the first configured registration wins
	var mailbox config.MailboxConfig
	for _, mb := range cfg.Mailboxes {
		if mb.Configured() {
			mailbox = mb
			break
		}
	}
	if !mailbox.Configured() {
		log.Fatalf("No usable mailbox registration (set mailboxes in config/config.yaml or AZURE_* env vars)")
	}
	graphCfg := graph.Config{
		TenantID:     mailbox.TenantID,
		ClientID:     mailbox.ClientID,
		ClientSecret: mailbox.ClientSecret,
		UserID:       mailbox.UserID,
		BatchSize:    cfg.Pipeline.ReadBatchSize,
		UnseenOnly:   true,
		OrderDesc:    true,
	}
	if base := os.Getenv("GRAPH_BASE_URL"); base != "" {
		graphCfg.BaseURL = base
		log.Printf("[config] GRAPH_BASE_URL override active: %s", base)
	}
	if tok := os.Getenv("GRAPH_TOKEN_URL"); tok != "" {
		graphCfg.TokenURL = tok
	}
	mail, err := graph.NewClient(graphCfg, olog)
	if err != nil {
		log.Fatalf("Failed to initialize graph client: %v", err)
	}
	probeCtx, probeCancel := context.WithTimeout(ctx, 30*time.Second)
	err = mail.Probe(probeCtx)
	probeCancel()
	if err != nil {
		log.Fatalf("Graph mailbox probe FAILED for '%s': %v", mailbox.Name, err)
	}
	log.Printf("Graph mailbox '%s' reachable (user %s)", mailbox.Name, mailbox.UserID)

	// Extraction oracle
	if cfg.OpenAI.APIKey == "" {
		log.Fatalf("OPENAI_API_KEY is required for the extraction stage")
	}
	oracleClient, err := oracle.NewClient(oracle.Config{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.Model,
		Temperature: cfg.OpenAI.Temperature,
		Timeout:     cfg.OpenAI.Timeout(),
	})
	if err != nil {
		log.Fatalf("Failed to initialize extraction oracle: %v", err)
	}
	log.Printf("Extraction oracle ready (model %s)", cfg.OpenAI.Model)

	// Geocoder
	if cfg.Google.APIKey == "" {
		log.Println("Warning: GOOGLE_API_KEY not set, geocoding will rely on the cache alone")
	}
	geocoder, err := geocode.New(geocode.Config{
		APIKey:  cfg.Google.APIKey,
		BaseURL: cfg.Google.BaseURL,
		Timeout: cfg.Google.Timeout(),
	}, st, olog)
	if err != nil {
		log.Fatalf("Failed to initialize geocoder: %v", err)
	}

	// Stage queues and pipeline runtime
	queues := pipeline.NewQueues(pipeline.QueueSizes{
		Mailbox:    cfg.Queues.Mailbox,
		Extraction: cfg.Queues.Extraction,
		Matching:   cfg.Queues.Matching,
		Outbound:   cfg.Queues.Outbound,
	})

	pool := extraction.New(queues.Extraction, oracleClient, geocoder, st, olog, extraction.Options{
		Pace: cfg.Pipeline.ExtractionPace(),
	})

	engine := matching.New(st, matching.Options{
		RadiusKM:      cfg.Matching.RadiusKM,
		RecencyDays:   cfg.Matching.RecencyDays,
		TopK:          cfg.Matching.TopK,
		CommissionCap: cfg.Matching.CommissionCap,
		BandLow:       cfg.Matching.CapacityBandLow,
		BandHigh:      cfg.Matching.CapacityBandHigh,
		MonthWindow:   cfg.Matching.MonthWindow,
	})

	composer, err := outbound.New(mail, st, outbound.Config{
		Recipients:   cfg.Outbound.Recipients,
		TemplatePath: cfg.Outbound.TemplatePath,
	})
	if err != nil {
		log.Fatalf("Failed to initialize outbound composer: %v", err)
	}
	log.Printf("Outbound composer ready (%d recipients)", len(cfg.Outbound.Recipients))

	rt := &pipeline.Runtime{
		Queues:            queues,
		Store:             st,
		Mail:              mail,
		Extract:           pool,
		Match:             engine,
		Compose:           composer,
		Log:               olog,
		AttemptInterval:   cfg.Pipeline.AttemptInterval(),
		ReadLimit:         cfg.Pipeline.ReadLimit,
		MatchScanInterval: cfg.Pipeline.MatchScanInterval(),
	}
	sup := pipeline.NewSupervisor(rt)
	sup.RegisterDefaults()
	log.Printf("Task registry ready: %d tasks registered, none running until started over the control API", len(sup.Describe()))
	log.Printf("  Suggested extraction start: /start/consumer/%d_%s", cfg.OpenAI.Workers, pipeline.TaskGPTEmailConsumer)

	server := api.NewServer(ctx, sup, queues, hub, olog)

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", host, port)
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Println("All services initialized, server is ready")

	<-done
	log.Println("Shutting down...")

	// Stop pipeline tasks first so in-flight emails reach their commit point
	sup.StopAll(30 * time.Second)
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	hub.Close()
	if err := st.Close(shutdownCtx); err != nil {
		log.Printf("Store close error: %v", err)
	}

	log.Println("Server stopped")
}
