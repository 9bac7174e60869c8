package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"certhub/pkg/platform/httputil"
	"certhub/pkg/platform/middleware/admin"
	"certhub/pkg/platform/middleware/metadata"
	"certhub/pkg/platform/middleware/request"
	"certhub/pkg/requestcontext"
)

// Registrar mounts public routes.
type Registrar interface {
	Register(r chi.Router)
}

// AdminRegistrar mounts secret-protected and diagnostic routes.
type AdminRegistrar interface {
	RegisterAdmin(r chi.Router)
	RegisterDebug(r chi.Router)
}

// Availability reports whether the database can serve requests.
type Availability interface {
	Available() bool
}

// Deps holds everything the router wires together.
type Deps struct {
	Public         []Registrar
	Admin          AdminRegistrar
	Database       Availability
	Gatherer       prometheus.Gatherer
	AdminSecret    string
	DebugEndpoints bool
	Logger         *zerolog.Logger
}

type statusResponse struct {
	Status            string `json:"status"`
	DatabaseAvailable bool   `json:"databaseAvailable"`
	Time              string `json:"time"`
}

// NewRouter wires all endpoints behind the shared middleware stack.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Time)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(d.Logger))
	r.Use(request.Recover(d.Logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/api/status", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, statusResponse{
			Status:            "running",
			DatabaseAvailable: d.Database.Available(),
			Time:              requestcontext.Now(r.Context()).UTC().Format(time.RFC3339),
		})
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	for _, reg := range d.Public {
		reg.Register(r)
	}

	if d.Admin != nil {
		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdminKey(d.AdminSecret, d.Logger))
			d.Admin.RegisterAdmin(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(admin.RequireDebug(d.DebugEndpoints))
			d.Admin.RegisterDebug(r)
		})
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.Envelope{Success: false, Message: "route not found"})
	})
	return r
}
