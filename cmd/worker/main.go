// Command worker is a gridmr worker process: a long-running HTTP server
// that registers with the coordinator, accepts map/reduce tasks naming a
// built-in program by URL, and heartbeats on an interval.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/alicklee/gridmr/internal/config"
	"github.com/alicklee/gridmr/internal/loader"
	"github.com/alicklee/gridmr/internal/loader/builtin"
	"github.com/alicklee/gridmr/internal/pathrw"
	"github.com/alicklee/gridmr/internal/worker"
)

func main() {
	port := flag.Int("port", 8001, "port to listen on")
	configPath := flag.String("config", "", "path to gridmr.yaml (optional; defaults are used when absent)")
	useNFS := flag.Bool("use-nfs", false, "enable shared-storage path rewriting")
	nfsMount := flag.String("nfs-mount", "/mnt/gridmr", "local NFS mount prefix")
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: worker <master_ip> <master_port> [--port N] [--use-nfs] [--nfs-mount PATH]")
		os.Exit(1)
	}
	masterIP, masterPort := args[0], args[1]
	coordinatorAddr := fmt.Sprintf("http://%s:%s", masterIP, masterPort)

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("worker: failed to load config")
	}
	cfg.UseNFS = *useNFS
	if *nfsMount != "" {
		cfg.LocalMount = *nfsMount
	}

	rewriter, err := pathrw.New(cfg.SharedRoot, cfg.LocalMount, cfg.UseNFS)
	if err != nil {
		log.WithError(err).Fatal("worker: invalid path rewriting config")
	}

	registry := loader.NewRegistry(log)
	builtin.Register(registry)
	ld := loader.New(registry, rewriter)

	workerID := "worker-" + uuid.NewString()
	executor := worker.NewExecutor(log, workerID, ld, rewriter, cfg.ReduceFanout)
	srv := worker.NewServer(log, workerID, executor)

	addr := fmt.Sprintf(":%d", *port)
	httpServer := &http.Server{Addr: addr, Handler: srv}

	go func() {
		log.WithFields(logrus.Fields{"worker_id": workerID, "addr": addr}).Info("worker: listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("worker: HTTP server failed")
		}
	}()

	client := worker.NewCoordinatorClient(log, coordinatorAddr, workerID, fmt.Sprintf("%d", *port))
	if err := retryRegister(client, "general", 5); err != nil {
		log.WithError(err).Fatal("worker: failed to register with coordinator")
	}

	stop := make(chan struct{})
	go client.RunHeartbeatLoop(cfg.HeartbeatInterval, "general", stop)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	log.Info("worker: shutting down")
	close(stop)
	_ = httpServer.Close()
}

func retryRegister(client *worker.CoordinatorClient, workerType string, attempts int) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = client.Register(workerType); err == nil {
			return nil
		}
	}
	return err
}
