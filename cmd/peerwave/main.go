package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/peerwave/peerwave/internal/api"
	"github.com/peerwave/peerwave/internal/call"
	"github.com/peerwave/peerwave/internal/chat"
	"github.com/peerwave/peerwave/internal/config"
	"github.com/peerwave/peerwave/internal/realtime"
	"github.com/peerwave/peerwave/internal/storage"
	"github.com/peerwave/peerwave/internal/util"
)

var (
	configPath = flag.String("config", "peerwave.json", "Path to the config file")
	version    = flag.Bool("version", false, "Show version")
)

// appVersion is set at build time via -ldflags "-X main.appVersion=x.y.z"
var appVersion = "dev"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("peerwave v%s\n", appVersion)
		return
	}

	if err := run(); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
}

func run() error {
	cfg, created, err := config.Ensure(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if created {
		log.Printf("CONFIG: wrote default config to %s", *configPath)
	}
	applyLogLevel(cfg.Log.Level)

	baseDir := filepath.Dir(*configPath)
	db, err := storage.Open(util.ResolvePath(baseDir, cfg.Paths.DataDir))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	store, err := chat.NewStore(db, cfg.Server.UserID)
	if err != nil {
		return err
	}

	rt := realtime.New(cfg.Server.URL, time.Duration(cfg.Server.ReconnectSec)*time.Second)
	defer rt.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go store.Run(ctx, rt)

	calls := call.New(rt, call.MediaOptions{
		ICEServers:    cfg.Call.ICEServers,
		CameraFacing:  cfg.Call.CameraFacing,
		VideoDisabled: cfg.Call.VideoDisabled,
	})
	defer calls.Close()

	if cfg.Server.UserID != "" {
		rt.Connect(cfg.Server.UserID)
	}

	stopWatch, err := config.Watch(*configPath, func(next config.Config) {
		applyLogLevel(next.Log.Level)
	})
	if err != nil {
		log.Printf("CONFIG: watch disabled: %v", err)
	} else {
		defer stopWatch()
	}

	var srv *http.Server
	if cfg.API.HTTPAddr != "" {
		srv = api.NewServer(cfg.API.HTTPAddr, api.Deps{
			Realtime: rt,
			Chat:     store,
			Calls:    calls,
		})
		go func() {
			log.Printf("API: listening on http://%s", cfg.API.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("API: server stopped: %v", err)
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	return nil
}

func applyLogLevel(level string) {
	if level == "" {
		level = "info"
	}
	if err := logging.SetLogLevel("realtime", level); err != nil {
		log.Printf("CONFIG: bad log level %q: %v", level, err)
	}
}
