package setup

import (
	"encoding/json"
	"net/http"

	"handyman-app/api-gateway/internal/auth"
	"handyman-app/api-gateway/internal/config"
	"handyman-app/api-gateway/internal/middleware"
	"handyman-app/api-gateway/internal/proxy"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type route struct {
	path        string
	stripPrefix string
	addPrefix   string
}

var adminRoutes = []route{
	{"/reputation/admin", "/api/reputation/admin", "/api/reputation/admin"},
}

var serviceRoutes = []route{
	{"/jobs", "/api/jobs", "/api/jobs"},
	{"/reputation", "/api/reputation", "/api/reputation"},
	{"/workers", "/api/workers", "/api/workers"},
}

// NewRouter wires the edge routes in front of job-service. Admin routes are
// registered first so the generic reputation prefix does not shadow them.
func NewRouter(cfg *config.Config, logger *logrus.Logger) (*mux.Router, error) {
	router := mux.NewRouter()
	router.Use(middleware.Logging(logger))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.JWTAuth(cfg.JWTSecret, cfg.SessionCookie))

	for _, r := range adminRoutes {
		h, err := proxy.CreateProxy(cfg.JobServiceURL, r.stripPrefix, r.addPrefix, logger)
		if err != nil {
			return nil, err
		}
		admin := api.PathPrefix(r.path).Subrouter()
		admin.Use(auth.RequireRole("admin"))
		admin.Handle("", h)
		admin.PathPrefix("/").Handler(h)
	}

	for _, r := range serviceRoutes {
		h, err := proxy.CreateProxy(cfg.JobServiceURL, r.stripPrefix, r.addPrefix, logger)
		if err != nil {
			return nil, err
		}
		api.Handle(r.path, h)
		api.PathPrefix(r.path + "/").Handler(h)
	}

	return router, nil
}
