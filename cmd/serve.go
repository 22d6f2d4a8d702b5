package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openrepro/repro-audit/internal/resilience"
	"github.com/openrepro/repro-audit/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/api/results", func(w http.ResponseWriter, req *http.Request) {
			doi := req.URL.Query().Get("doi")
			if doi == "" {
				writeError(w, http.StatusBadRequest, "doi is required")
				return
			}
			results, err := env.store.GetResults(req.Context(), doi)
			if err != nil {
				writeStoreError(w, err)
				return
			}
			if len(results) == 0 {
				writeError(w, http.StatusNotFound, "no verdicts for doi")
				return
			}
			writeJSON(w, http.StatusOK, results)
		})

		r.Get("/api/summary", func(w http.ResponseWriter, req *http.Request) {
			doi := req.URL.Query().Get("doi")
			if doi == "" {
				writeError(w, http.StatusBadRequest, "doi is required")
				return
			}
			sum, err := env.store.GetSummary(req.Context(), doi)
			if err != nil {
				writeStoreError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, sum)
		})

		r.Post("/api/analyze", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Text      string `json:"text"`
				Summarize bool   `json:"summarize"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if body.Text == "" {
				writeError(w, http.StatusBadRequest, "text is required")
				return
			}

			// Analysis runs in the background against the server context, not
			// the request context.
			go func() {
				if err := runAnalysis(ctx, env, body.Text, body.Summarize); err != nil {
					zap.L().Error("async analysis failed", zap.Error(err))
				}
			}()

			writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func runAnalysis(ctx context.Context, env *env, text string, summarize bool) error {
	items, err := loadChecklist(ctx, env.store, "")
	if err != nil {
		return err
	}

	meta, err := env.newExtractor().Extract(ctx, text)
	if err != nil {
		return eris.Wrap(err, "extract metadata")
	}
	if meta.DOI == "" {
		return eris.New("manuscript has no DOI; cannot key results")
	}
	if err := env.store.SaveManuscript(ctx, meta); err != nil {
		return err
	}

	run, runErr := env.newAnalyzer().AnalyzeManuscript(ctx, meta, text, items)
	if err := env.store.SaveRun(ctx, run); err != nil {
		zap.L().Error("save run failed", zap.Error(err))
	}
	if runErr != nil {
		return runErr
	}

	if summarize && len(run.Results) > 0 {
		sum, err := env.newSummarizer().Summarize(ctx, meta.DOI, run.Results, items)
		if err != nil {
			return eris.Wrap(err, "summarize")
		}
		if err := env.store.SaveSummary(ctx, sum); err != nil {
			return err
		}
	}

	zap.L().Info("async analysis complete",
		zap.String("doi", meta.DOI),
		zap.Int("results", len(run.Results)),
		zap.Int("errors", len(run.Errors)),
	)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case eris.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case resilience.IsTransient(err):
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
