package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/RichardMN/mastodon-digest/internal/config"
	"github.com/RichardMN/mastodon-digest/internal/store"
	"github.com/RichardMN/mastodon-digest/internal/web"
	"github.com/RichardMN/mastodon-digest/logger"
)

func newServeCmd() *cobra.Command {
	var (
		port       int
		outputDir  string
		corsOrigin string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve rendered digests and the run history over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, outputDir, corsOrigin)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "port to listen on")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "./render/", "directory of rendered digests to serve")
	cmd.Flags().StringVar(&corsOrigin, "cors-origin", "*", "origin allowed to call the API")

	return cmd
}

func runServe(ctx context.Context, port int, outputDir, corsOrigin string) error {
	env, err := config.LoadServeEnv(ctx)
	if err != nil {
		return fmt.Errorf("error parsing environment: %s", err)
	}
	slog.SetDefault(logger.New(env.LoggerFormat))

	st, err := store.Open(env.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	s := web.NewServer(web.Config{
		Port:       port,
		OutputDir:  outputDir,
		CorsOrigin: corsOrigin,
	}, st)

	slog.Info("serving digest archive", "port", port, "dir", outputDir)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error listening: %s", err)
		}

		return nil
	})
	g.Go(func() error {
		// Block from shutting down until the group is canceled
		<-gCtx.Done()

		downCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(downCtx); err != nil {
			slog.Error("error shutting down server", "error", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("error running: %s", err)
	}

	return nil
}
