package main

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/joho/godotenv"

	"sales-insights-go/internal/config"
	"sales-insights-go/internal/dataset"
	"sales-insights-go/internal/insight"
	"sales-insights-go/internal/logger"
	"sales-insights-go/internal/modelcache"
	"sales-insights-go/internal/pipeline"
	"sales-insights-go/internal/schema"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "sales-insights-go").Info("starting service")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	// the mapping table is fatal if broken: an ambiguous header variant is
	// a config bug, not something to limp past at runtime
	table, err := schema.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load field mapping table")
	}
	log.WithField("schema_version", table.Version()).Info("field mapping table loaded")

	cache := modelcache.New(cfg.CacheTTL, cfg.CacheMaxEntries, log.WithComponent("modelcache"))
	pipe := pipeline.New(table, cache, insight.Options{
		ForecastMinDays:     cfg.ForecastMinDays,
		ForecastHorizonDays: cfg.ForecastHorizonDays,
		AnomalyMinDays:      cfg.AnomalyMinDays,
		SegmentMinCustomers: cfg.SegmentUsersMin,
	}, log.Entry)

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		logger.New().WithRequest(req).Info("health check")
		fmt.Fprint(w, "ok")
	})

	r.Post("/api/upload", func(w http.ResponseWriter, req *http.Request) {
		reqLog := logger.New().WithRequest(req).WithField("handler", "upload")
		reqLog.Info("upload received")

		raw, err := readUpload(req)
		if err != nil {
			reqLog.WithError(err).Warn("unreadable upload")
			render.Status(req, http.StatusBadRequest)
			render.JSON(w, req, map[string]string{"error": err.Error()})
			return
		}

		start := time.Now()
		res := pipe.Run(req.Context(), raw)
		reqLog.WithField("duration_ms", time.Since(start).Milliseconds()).
			WithField("success", res.Normalization.Success).
			Info("pipeline finished")

		if !res.Normalization.Success {
			render.Status(req, http.StatusUnprocessableEntity)
		}
		render.JSON(w, req, res)
	})

	r.Get("/api/cache/stats", func(w http.ResponseWriter, req *http.Request) {
		logger.New().WithRequest(req).WithField("handler", "cache_stats").Info("cache stats")
		render.JSON(w, req, cache.Stats())
	})

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.WithField("addr", addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server terminated")
	}
}

// readUpload accepts either a raw CSV body or a multipart "file" part; an
// .xlsx filename routes through the workbook reader.
func readUpload(req *http.Request) (dataset.RawTable, error) {
	ct := req.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		file, header, err := req.FormFile("file")
		if err != nil {
			return dataset.RawTable{}, fmt.Errorf("missing file part: %w", err)
		}
		defer file.Close()
		if strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
			return dataset.ReadXLSX(file)
		}
		return dataset.ReadCSV(file)
	}
	defer req.Body.Close()
	return dataset.ReadCSV(req.Body)
}
