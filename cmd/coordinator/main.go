// Command coordinator is the gridmr cluster's singleton job coordinator:
// a long-running HTTP server accepting arbitrary job submissions,
// dispatching tasks to registered workers, and assembling results.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alicklee/gridmr/internal/config"
	"github.com/alicklee/gridmr/internal/coordinator"
)

func main() {
	port := flag.Int("port", 8000, "port to listen on")
	configPath := flag.String("config", "", "path to gridmr.yaml (optional; defaults are used when absent)")
	useNFS := flag.Bool("use-nfs", false, "enable shared-storage path rewriting")
	nfsMount := flag.String("nfs-mount", "/mnt/gridmr", "local NFS mount prefix (worker-side only; unused by the coordinator)")
	flag.Parse()
	_ = nfsMount // common flag across all three binaries; the coordinator never rewrites paths itself.

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("coordinator: failed to load config")
	}
	cfg.UseNFS = *useNFS

	reg := coordinator.NewRegistry()
	scheduler := coordinator.NewScheduler(log, cfg, reg)
	defer scheduler.Close()

	srv := coordinator.NewServer(log, scheduler, reg)

	addr := fmt.Sprintf(":%d", *port)
	httpServer := &http.Server{Addr: addr, Handler: srv}

	go func() {
		log.WithField("addr", addr).Info("coordinator: listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("coordinator: HTTP server failed")
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	log.Info("coordinator: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.WithError(err).Error("coordinator: graceful shutdown failed")
	}
}
