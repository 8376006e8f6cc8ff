package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrJJimenez/jobscan/internal/httpapi"
)

type ServeCmd struct {
	Addr    string `help:"Listen address." default:":8080" env:"JOBSCAN_ADDR"`
	Sources string `help:"Comma-separated sources in priority order."`
	Proxies string `help:"Comma-separated proxy URLs." env:"JOBSCAN_PROXIES"`
}

const shutdownTimeout = 10 * time.Second

func (s *ServeCmd) Run(ctx *Context) error {
	// One aggregator for the whole process so the cache and rate windows
	// are shared between requests.
	agg, err := buildAggregator(ctx, s.Sources, s.Proxies)
	if err != nil {
		return err
	}
	runner, err := newScanRunner(ctx, agg, false)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: s.Addr,
		Handler: httpapi.NewHandler(httpapi.Deps{
			Searcher:     agg,
			Scanner:      runner,
			DefaultQuery: ctx.Config.DefaultQuery,
			Logger:       ctx.Logger,
			Clock:        ctx.Clock,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		ctx.Logger.Info().Str("addr", s.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-sigCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	ctx.Logger.Info().Msg("shutting down")
	return srv.Shutdown(shutdownCtx)
}
