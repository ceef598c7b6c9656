package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"media-distribution/internal/admin"
	"media-distribution/internal/catalog"
	"media-distribution/internal/ffmpeg"
	"media-distribution/internal/platform/config"
	"media-distribution/internal/platform/logger"
	"media-distribution/internal/platform/metrics"
	"media-distribution/internal/server"
	"media-distribution/internal/session"
	"media-distribution/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	met := metrics.New()
	runner := ffmpeg.New(cfg.FFmpegBin)

	if cfg.SkipBuild {
		log.Info("variant build skipped")
	} else {
		report := catalog.NewBuilder(cfg.MediaDir, runner, log, met).BuildMissingVariants(ctx)
		log.Info("catalog ready",
			"sources", report.Sources,
			"created", len(report.Created),
			"skipped", len(report.Skipped),
			"failed", len(report.Failed),
		)
	}
	if ctx.Err() != nil {
		log.Info("interrupted before serving")
		return
	}

	var ports session.PortRange
	if cfg.RTPPortMode == config.PortModeDynamic {
		ports = session.PortRange{Min: cfg.RTPPortMin, Max: cfg.RTPPortMax, RTCPOffset: transport.RTCPOffset}
	}
	sessions := session.NewTable(ports)

	srv := server.New(server.Config{
		MediaDir:        cfg.MediaDir,
		MaxConnections:  cfg.MaxConnections,
		ReadTimeout:     cfg.ReadTimeout,
		SDPDelivery:     cfg.SDPDelivery,
		SDPWaitTimeout:  cfg.SDPWaitTimeout,
		DynamicRTPPorts: ports.Min > 0,
	}, transport.NewNegotiator(cfg.SDPDir), sessions, server.FFmpegLauncher(runner), log, met)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.ListenAddr)
	})

	if cfg.AdminAddr != "" {
		h := admin.NewHandler(cfg.MediaDir, sessions, log, met)
		httpSrv := &http.Server{Addr: cfg.AdminAddr, Handler: h.Router(), ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			log.Info("admin server starting", "addr", cfg.AdminAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
	}

	log.Info("server starting",
		"listen_addr", cfg.ListenAddr,
		"media_dir", cfg.MediaDir,
		"sdp_delivery", cfg.SDPDelivery,
		"rtp_port_mode", cfg.RTPPortMode,
		"log_level", cfg.LogLevel,
	)

	err := g.Wait()

	log.Info("shutdown signal received, stopping pumps")
	srv.StopPumps()

	if err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
