// Command rakugakid runs a rakugaki server: login, wall storage, and the
// /api/wall WebSocket protocol behind a gin HTTP router.
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
	"github.com/spf13/afero"

	"github.com/liquidev/rakugaki/internal/config"
	"github.com/liquidev/rakugaki/internal/server"
)

func main() {
	var configFile string
	var devMode bool
	flag.StringVar(&configFile, "config", "", "path to a YAML/JSON/TOML config file")
	flag.BoolVar(&devMode, "dev", false, "enable dev-only routes and verbose logging")
	flag.Parse()

	log := logrus.NewEntry(logrus.StandardLogger())
	if devMode {
		logrus.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	srv := server.New(cfg, afero.NewOsFs(), cfg.DBRoot, log, devMode)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: srv.Router(),
	}

	go func() {
		log.WithField("port", cfg.Port).Info("rakugakid listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server stopped unexpectedly")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
