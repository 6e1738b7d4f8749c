package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meja-pos/api/internal/bootstrap"
	"github.com/meja-pos/api/internal/config"
	"github.com/meja-pos/api/internal/handler"
	"github.com/meja-pos/api/internal/logging"
	"github.com/meja-pos/api/internal/notify"
	"github.com/meja-pos/api/internal/router"
	"github.com/meja-pos/api/internal/service"
	"github.com/meja-pos/api/internal/ws"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	var notifier service.Notifier = notify.Log{Logger: log}
	var checks []handler.ReadyCheck
	if cfg.AMQPURL != "" {
		amqpNotifier, err := notify.DialAMQP(cfg.AMQPURL, cfg.NotifyExchange)
		if err != nil {
			return err
		}
		defer amqpNotifier.Close()
		notifier = notify.Multi{amqpNotifier, notify.Log{Logger: log}}
		checks = append(checks, handler.ReadyCheck{Name: "amqp", Pinger: amqpNotifier})
		log.WithField("exchange", cfg.NotifyExchange).Info("publishing notifications to amqp")
	}

	hub := ws.NewHub(log)
	svc := service.NewOrderService(backend,
		service.WithNotifier(notifier),
		service.WithPublisher(hub),
		service.WithLogger(log),
		service.WithSyncRetries(cfg.SyncRetries),
		service.WithPublicURL(cfg.PublicURL),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router.New(cfg, svc, hub, log, checks...),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.WithField("port", cfg.Port).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
