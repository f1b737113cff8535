package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	digesterrs "github.com/RichardMN/mastodon-digest/internal/errors"
)

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("error encoding json response: %s", err)
	}

	return nil
}

func accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		writer := &respCodeWriter{ResponseWriter: w}
		next.ServeHTTP(writer, r)

		slog.Info("request completed",
			"method", r.Method,
			"url", r.URL.String(),
			"duration", time.Since(start),
			"status_code", writer.code,
		)
	})
}

// To trap the response status code for logging later.
type respCodeWriter struct {
	http.ResponseWriter
	code int
}

func (w *respCodeWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// handlerFuncE is a modified type of [http.HandlerFunc] that returns an error.
type handlerFuncE func(w http.ResponseWriter, r *http.Request) error

func (f handlerFuncE) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := f(w, r)
	if err == nil {
		return
	}

	// Either it's already a structured error, or coerce it to one
	sErr := &digesterrs.Error{}
	if !errors.As(err, &sErr) {
		slog.Error("unstructured handler error", "err", err)
		sErr = digesterrs.E(http.StatusInternalServerError, "internal server error")
	}

	if err := writeJSON(w, sErr.Status, sErr); err != nil {
		slog.Error("error writing response", "error", err)
	}
}

// errRouter is a newtype around a mux router that allows attaching handlers that return errors.
type errRouter struct {
	*mux.Router
}

func (r errRouter) HandleFuncE(path string, f handlerFuncE) *mux.Route {
	return r.Handle(path, f)
}
