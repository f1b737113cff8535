// Package web serves rendered digests and the run history over HTTP. The
// rendered output directory is served as static files, and a small JSON API
// exposes past runs and the bot's boost history.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	digesterrs "github.com/RichardMN/mastodon-digest/internal/errors"
	"github.com/RichardMN/mastodon-digest/internal/store"
)

// History is the slice of the store the server reads from.
type History interface {
	Runs(ctx context.Context, args store.RunArgs) ([]store.Run, error)
	Boosts(ctx context.Context, args store.BoostArgs) ([]store.Boost, error)
}

type (
	// Server hosts the digest archive.
	Server struct {
		*http.Server

		history History
	}

	Config struct {
		Port       int
		OutputDir  string
		CorsOrigin string
	}
)

const defaultListLimit = 50

func NewServer(config Config, history History) *Server {
	r := errRouter{Router: mux.NewRouter()}

	srvr := Server{
		history: history,
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			Handler: handlers.CORS(
				handlers.AllowedOrigins([]string{config.CorsOrigin}),
				handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
				handlers.AllowedHeaders([]string{"content-type"}),
			)(r),
		},
	}

	r.Use(accessLogMiddleware) // Log everything
	r.HandleFuncE("/api/runs", srvr.getRuns).Methods(http.MethodGet)
	r.HandleFuncE("/api/boosts", srvr.getBoosts).Methods(http.MethodGet)

	// The rendered digest itself
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(config.OutputDir)))

	slog.Debug("configured archive server", "port", config.Port, "dir", config.OutputDir)

	return &srvr
}

type runsResp struct {
	Runs []store.Run `json:"runs"`
}

func (s Server) getRuns(w http.ResponseWriter, r *http.Request) error {
	limit, err := limitParam(r)
	if err != nil {
		return err
	}

	runs, err := s.history.Runs(r.Context(), store.RunArgs{
		OutputType: r.URL.Query().Get("output"),
		Limit:      limit,
	})
	if err != nil {
		return fmt.Errorf("error listing runs: %s", err)
	}
	if runs == nil {
		runs = []store.Run{}
	}

	return writeJSON(w, http.StatusOK, runsResp{Runs: runs})
}

type boostsResp struct {
	Boosts []store.Boost `json:"boosts"`
}

func (s Server) getBoosts(w http.ResponseWriter, r *http.Request) error {
	limit, err := limitParam(r)
	if err != nil {
		return err
	}

	boosts, err := s.history.Boosts(r.Context(), store.BoostArgs{
		Acct:  r.URL.Query().Get("acct"),
		Limit: limit,
	})
	if err != nil {
		return fmt.Errorf("error listing boosts: %s", err)
	}
	if boosts == nil {
		boosts = []store.Boost{}
	}

	return writeJSON(w, http.StatusOK, boostsResp{Boosts: boosts})
}

func limitParam(r *http.Request) (uint64, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, nil
	}

	limit, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || limit == 0 {
		return 0, digesterrs.E(http.StatusBadRequest, "invalid limit", digesterrs.Detail{
			Field: "limit",
			Error: "must be a positive integer",
		})
	}

	return limit, nil
}
