package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"glossync/internal/auth"
	"glossync/internal/config"
	"glossync/internal/credentials"
	"glossync/internal/ledger"
	"glossync/internal/pipeline"
	synchub "glossync/internal/sync"
	"glossync/internal/terms"
	"glossync/pkg/utils"
)

func main() {
	cfgPath := flag.String("config", config.DefaultPath, "path to glossync.yaml")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := synchub.NewHub()
	tcpSrv := synchub.NewServer(cfg.Server.TCPAddr, hub)

	p, err := pipeline.New(cfg, hub)
	if err != nil {
		log.Fatalf("pipeline: %v", err)
	}

	l, closeLedger, err := shareLedger(ctx, p)
	if err != nil {
		log.Fatalf("open ledger: %v", err)
	}
	defer closeLedger()

	runner := pipeline.NewRunner(p)

	tokens := auth.NewTokenService(utils.LoadAuthConfig())

	router := gin.Default()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})
	registerRoutes(router, cfg, l, hub, runner, tokens)

	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tcpSrv.Run(ctx); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("HTTP API server listening on %s", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if cfg.Server.SyncInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runner.Every(ctx, cfg.Server.SyncInterval)
		}()
	}

	select {
	case <-ctx.Done():
		log.Printf("shutdown signal received")
	case err := <-errCh:
		log.Printf("server error: %v", err)
		stop()
	}

	log.Println("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}

	wg.Wait()
	// let a run started over HTTP finish its ledger write
	runner.Wait()
	log.Println("servers stopped")
}

var errNoLedger = errors.New("ledger credentials missing")

// shareLedger opens the ledger once and points the pipeline's runs at the
// same handle; the memory backend has no other. Missing credentials leave
// the ledger nil and the pipeline's own Open in place, so each run resolves
// them again and skips until they appear.
func shareLedger(ctx context.Context, p *pipeline.Pipeline) (ledger.Ledger, func() error, error) {
	l, closeLedger, err := p.Open(ctx)
	if errors.Is(err, credentials.ErrCredentialMissing) {
		log.Printf("[api] %v; term reads disabled, syncs skip until credentials appear", err)
		return nil, func() error { return nil }, nil
	}
	if err != nil {
		return nil, nil, err
	}
	p.Open = func(context.Context) (ledger.Ledger, func() error, error) {
		return l, func() error { return nil }, nil
	}
	return l, closeLedger, nil
}

func ledgerUnavailable(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": errNoLedger.Error()})
}

func registerRoutes(router *gin.Engine, cfg *config.Config, l ledger.Ledger, hub *synchub.Hub, runner *pipeline.Runner, tokens auth.TokenService) {
	router.GET("/ws", synchub.WSHandler(hub))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "ledger": cfg.Ledger.Backend})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		err := errNoLedger
		if l != nil {
			_, err = l.ReadAll(ctx)
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":       "not_ready",
				"ledger_error": err.Error(),
				"tcp_clients":  stats.TCPClients,
				"ws_clients":   stats.WSClients,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"ledger":      "ok",
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})

	router.GET("/debug", func(c *gin.Context) {
		stats := hub.Stats()
		status := runner.Status()
		c.JSON(http.StatusOK, gin.H{
			"ledger":        cfg.Ledger.Backend,
			"sync_interval": cfg.Server.SyncInterval.String(),
			"sync_running":  status.Running,
			"tcp_clients":   stats.TCPClients,
			"ws_clients":    stats.WSClients,
		})
	})

	if l == nil {
		router.GET("/terms", ledgerUnavailable)
		router.GET("/terms/:term", ledgerUnavailable)
		router.GET("/initials", ledgerUnavailable)
	} else {
		termsHandler := terms.NewHandler(terms.NewRepo(l))
		termsHandler.RegisterRoutes(router.Group("/terms"))
		router.GET("/initials", termsHandler.Initials)
	}

	router.GET("/sync/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, runner.Status())
	})

	router.POST("/sync", auth.RequireAdmin(tokens), func(c *gin.Context) {
		id, err := runner.Start(c.Request.Context())
		if errors.Is(err, pipeline.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "run_id": runner.Status().RunID})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "start failed"})
			return
		}
		log.Printf("[api] sync %s requested by %s", id, auth.MustGetClaims(c).Subject)
		c.JSON(http.StatusAccepted, gin.H{"run_id": id})
	})
}
