// Command keyartd runs the artwork curation daemon: queue workers, the
// sweep/gc scheduler, and the IPC control socket.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"keyart/internal/config"
	"keyart/internal/daemon"
	"keyart/internal/ipc"
	"keyart/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFor(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir, "keyartd.log")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	d, err := daemon.New(cfg, logger)
	if err != nil {
		log.Fatalf("create daemon: %v", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(ctx, cfg.Paths.SocketPath, d, logger)
	if err != nil {
		log.Fatalf("start ipc server: %v", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		log.Fatalf("start daemon: %v", err)
	}

	<-ctx.Done()
	logger.Info("keyartd shutting down")
}
