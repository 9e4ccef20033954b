// cmd/server/main.go
package main

import (
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/cardroom/tabletop/internal/config"
	"github.com/cardroom/tabletop/internal/handlers"
	"github.com/cardroom/tabletop/internal/hub"
	"github.com/cardroom/tabletop/internal/journal"
	"github.com/cardroom/tabletop/internal/middleware"
)

func main() {
	logger := logrus.New()
	if os.Getenv("TABLETOP_DEBUG") != "" {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg := config.Load()

	var jrnl *journal.Journal
	if cfg.RedisAddr != "" {
		j, err := journal.Connect(cfg.RedisAddr, cfg.RedisDB, cfg.JournalQueue, logger)
		if err != nil {
			logger.Warnf("command journal disabled: %v", err)
		} else {
			jrnl = j
			defer jrnl.Close()
			logger.Infof("command journal enabled at %s", cfg.RedisAddr)
		}
	}

	h := hub.New(logger, jrnl)

	mux := http.NewServeMux()
	mux.Handle("/ws", middleware.LogMiddleware(logger)(
		handlers.WSHandler(logger, h, cfg.QueueSize),
	))

	server := &http.Server{
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	l, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Fatalf("failed to listen on %s: %v", cfg.Addr, err)
	}
	logger.Infof("listening on %s", l.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(l)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	select {
	case err := <-errc:
		logger.Errorf("failed to serve: %v", err)
	case sig := <-sigs:
		logger.Infof("terminating: %v", sig)
	}
}
