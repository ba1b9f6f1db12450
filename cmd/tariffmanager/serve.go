package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bher20/tariffmanager/internal/api"
)

var serveWithWorker bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API, optionally with the scheduled worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := &http.Server{
			Addr: cfg.HTTPAddr,
			Handler: api.NewServer(api.Deps{
				Store:    a.store,
				Catalog:  a.catalog,
				Tariffs:  a.tariffs,
				Pipeline: a.pipeline,
				Log:      logger,
			}).Handler(),
		}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info("tariffmanager listening", zap.String("addr", cfg.HTTPAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		if serveWithWorker {
			w := a.worker(false)
			g.Go(func() error {
				if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		}
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveWithWorker, "with-worker", false, "also run the scheduled regeneration worker")
}
