package routes

import (
	"net/http"
	"strings"

	"profile-service/handlers"
	"profile-service/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(profileHandler *handlers.ProfileHandler, healthHandler *handlers.HealthHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.Metrics)

	router.Handle("/health", middleware.ErrorHandler(healthHandler.LiveHandler)).Methods(http.MethodGet)
	router.Handle("/health/ready", middleware.ErrorHandler(healthHandler.ReadyHandler)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.Handle("/profiles", middleware.ErrorHandler(profileHandler.CreateHandler)).Methods(http.MethodPost)
	router.Handle("/profiles", middleware.ErrorHandler(profileHandler.ListHandler)).Methods(http.MethodGet)
	router.Handle("/profiles/modify", middleware.ErrorHandler(profileHandler.ModifyHandler)).Methods(http.MethodPut)
	// Keeps GET /profiles/modify from being read as a profile uuid.
	router.Handle("/profiles/modify", methodNotAllowed(http.MethodPut)).Methods(http.MethodGet)
	// public/{uuid} must be registered ahead of {uuid}.
	router.Handle("/profiles/public/{uuid}", middleware.ErrorHandler(profileHandler.GetPublicHandler)).Methods(http.MethodGet)
	router.Handle("/profiles/{uuid}", middleware.ErrorHandler(profileHandler.GetHandler)).Methods(http.MethodGet)
	router.Handle("/upload", middleware.ErrorHandler(profileHandler.UploadHandler)).Methods(http.MethodPost)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteProblem(w, r, http.StatusNotFound, "", "Resource not found")
	})
	router.MethodNotAllowedHandler = methodNotAllowed()

	return router
}

func methodNotAllowed(allowed ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(allowed) > 0 {
			w.Header().Set("Allow", strings.Join(allowed, ", "))
		}
		middleware.WriteProblem(w, r, http.StatusMethodNotAllowed, "", "Method not allowed")
	})
}
