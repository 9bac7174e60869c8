// Package handler exposes the maintenance and diagnostic endpoints.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"certhub/internal/admin"
	"certhub/internal/certificate/models"
	"certhub/internal/platform/config"
	"certhub/internal/platform/database"
	"certhub/internal/retention"
	"certhub/pkg/platform/httputil"
	"certhub/pkg/platform/sentinel"
	"certhub/pkg/requestcontext"
)

const diagnosticTimeout = 5 * time.Second

// Sweeper runs a retention pass on demand.
type Sweeper interface {
	Sweep(ctx context.Context) retention.Report
}

// StatsSource summarizes stored certificates.
type StatsSource interface {
	Stats(ctx context.Context, expiredBefore time.Time) (models.Stats, error)
}

// Connections reports on and probes the managed pool.
type Connections interface {
	Status() database.Status
	Ping(ctx context.Context) (time.Duration, error)
	Reconnect() bool
}

// Handler serves admin and debug endpoints. Access control is applied by the
// router.
type Handler struct {
	sweeper   Sweeper
	stats     StatsSource
	conns     Connections
	uploadDir string
	retention config.Retention
	dbAddress string
	resolver  *net.Resolver
	dialer    *net.Dialer
	logger    *zerolog.Logger
}

// Config carries the static settings the handler reports on.
type Config struct {
	UploadDir string
	Retention config.Retention
	// DBAddress is host:port of the database server; empty for embedded databases.
	DBAddress string
}

func New(sweeper Sweeper, stats StatsSource, conns Connections, cfg Config, logger *zerolog.Logger) *Handler {
	return &Handler{
		sweeper:   sweeper,
		stats:     stats,
		conns:     conns,
		uploadDir: cfg.UploadDir,
		retention: cfg.Retention,
		dbAddress: cfg.DBAddress,
		resolver:  net.DefaultResolver,
		dialer:    &net.Dialer{Timeout: diagnosticTimeout},
		logger:    logger,
	}
}

// RegisterAdmin mounts the secret-protected maintenance endpoints.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/api/cleanup", h.HandleCleanup)
	r.Post("/api/cleanup", h.HandleCleanup)
	r.Get("/api/stats", h.HandleStats)
	r.Get("/api/file-status", h.HandleFileStatus)
}

// RegisterDebug mounts the connectivity diagnostics.
func (h *Handler) RegisterDebug(r chi.Router) {
	r.Get("/api/test-db-connection", h.HandleTestDB)
	r.Get("/api/test-network", h.HandleTestNetwork)
}

func (h *Handler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	report := h.sweeper.Sweep(r.Context())
	h.logger.Info().
		Str("request_id", requestcontext.RequestID(r.Context())).
		Str("client_ip", requestcontext.ClientIP(r.Context())).
		Int64("rows_deleted", report.RowsDeleted).
		Int("files_deleted", report.FilesDeleted).
		Msg("manual cleanup")

	msg := fmt.Sprintf("removed %d records and %d files", report.RowsDeleted, report.FilesDeleted)
	if report.DBSkipped {
		msg = fmt.Sprintf("database unavailable, removed %d files", report.FilesDeleted)
	}
	if len(report.Errors) > 0 {
		httputil.WriteJSON(w, http.StatusOK, httputil.Envelope{Success: false, Message: msg, Data: report})
		return
	}
	httputil.WriteSuccess(w, msg, report)
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := requestcontext.Now(ctx)
	status := h.conns.Status()

	stats, err := h.stats.Stats(ctx, h.retention.RecordAge.Cutoff(now))
	if errors.Is(err, sentinel.ErrUnavailable) {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.Envelope{
			Success: false,
			Message: "database unavailable",
			Data:    admin.StatsResponse{Connection: status},
		})
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("request_id", requestcontext.RequestID(ctx)).Msg("stats failed")
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, "", admin.StatsResponse{
		Stats:             stats,
		DatabaseAvailable: status.Available,
		Connection:        status,
	})
}

func (h *Handler) HandleFileStatus(w http.ResponseWriter, r *http.Request) {
	now := requestcontext.Now(r.Context())
	resp := admin.FileStatusResponse{
		Directory: h.uploadDir,
		Files:     []admin.FileInfo{},
		MaxAge:    h.retention.FileMaxAge.String(),
	}

	entries, err := os.ReadDir(h.uploadDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		resp.TotalSizeHuman = humanize.Bytes(0)
		httputil.WriteSuccess(w, "upload directory does not exist", resp)
		return
	case err != nil:
		h.logger.Error().Err(err).Str("dir", h.uploadDir).Msg("reading upload dir failed")
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.Envelope{Success: false, Message: "could not read upload directory"})
		return
	}
	resp.Exists = true

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		stale := now.Sub(info.ModTime()) > h.retention.FileMaxAge
		resp.Files = append(resp.Files, admin.FileInfo{
			Name:      entry.Name(),
			Size:      info.Size(),
			SizeHuman: humanize.Bytes(uint64(info.Size())),
			Modified:  info.ModTime().UTC(),
			Age:       humanize.RelTime(info.ModTime(), now, "ago", "from now"),
			Stale:     stale,
		})
		resp.TotalSize += info.Size()
		if stale {
			resp.StaleFiles++
		}
	}
	sort.Slice(resp.Files, func(i, j int) bool {
		return resp.Files[i].Modified.Before(resp.Files[j].Modified)
	})
	resp.TotalFiles = len(resp.Files)
	resp.TotalSizeHuman = humanize.Bytes(uint64(resp.TotalSize))

	httputil.WriteSuccess(w, "", resp)
}

// HandleTestDB pings the database through the manager. When retries are
// exhausted it schedules a fresh attempt instead.
func (h *Handler) HandleTestDB(w http.ResponseWriter, r *http.Request) {
	status := h.conns.Status()
	if status.State == database.StateExhausted {
		scheduled := h.conns.Reconnect()
		httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.Envelope{
			Success: false,
			Message: "connection retries exhausted, reconnect scheduled",
			Data:    admin.DBCheckResponse{Reconnect: scheduled, Connection: status},
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), diagnosticTimeout)
	defer cancel()

	latency, err := h.conns.Ping(ctx)
	if err != nil {
		h.logger.Warn().Err(err).Str("request_id", requestcontext.RequestID(r.Context())).Msg("database ping failed")
		httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.Envelope{
			Success: false,
			Message: err.Error(),
			Data:    admin.DBCheckResponse{Connection: h.conns.Status()},
		})
		return
	}

	httputil.WriteSuccess(w, "database reachable", admin.DBCheckResponse{
		LatencyMs:  millis(latency),
		Connection: h.conns.Status(),
	})
}

// HandleTestNetwork resolves the database host and opens a TCP connection to it.
func (h *Handler) HandleTestNetwork(w http.ResponseWriter, r *http.Request) {
	if h.dbAddress == "" {
		httputil.WriteSuccess(w, "database is embedded, no network target", admin.NetworkCheckResponse{})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), diagnosticTimeout)
	defer cancel()

	resp := h.checkNetwork(ctx, h.dbAddress)
	if !resp.Reachable {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.Envelope{
			Success: false,
			Message: "database host unreachable",
			Data:    resp,
		})
		return
	}
	httputil.WriteSuccess(w, "database host reachable", resp)
}

func (h *Handler) checkNetwork(ctx context.Context, address string) admin.NetworkCheckResponse {
	resp := admin.NetworkCheckResponse{Target: address}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		resp.DNSError = err.Error()
		return resp
	}
	resp.Host = host

	start := time.Now()
	addrs, err := h.resolver.LookupHost(ctx, host)
	resp.DNSMs = millis(time.Since(start))
	if err != nil {
		resp.DNSError = err.Error()
		return resp
	}
	resp.Addresses = addrs

	start = time.Now()
	conn, err := h.dialer.DialContext(ctx, "tcp", address)
	resp.DialMs = millis(time.Since(start))
	if err != nil {
		resp.DialError = err.Error()
		return resp
	}
	_ = conn.Close()
	resp.Reachable = true
	return resp
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
