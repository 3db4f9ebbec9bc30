package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.metricsMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.HTTP.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(s.rateLimitMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		// Apply JWT authentication to all v1 routes
		v1.Use(s.authMw.Middleware)
		v1.Use(s.profileMiddleware)

		// The websocket outlives any request timeout.
		v1.Get("/realtime", s.handleRealtime)

		v1.Group(func(api chi.Router) {
			api.Use(middleware.Timeout(60 * time.Second))

			api.Get("/profile", s.handleGetProfile)
			api.Patch("/profile", s.handleUpdateProfile)
			api.Post("/profile/hq/upgrade", s.handleUpgradeHeadquarters)

			api.With(s.cacheResponses).Get("/catalog", s.handleCatalog)
			api.With(s.cacheResponses).Get("/station-blueprints", s.handleListStationBlueprints)
			api.With(s.cacheResponses).Get("/vehicle-types", s.handleListVehicleTypes)

			api.Get("/stations", s.handleListStations)
			api.Post("/stations", s.handlePurchaseStation)
			api.Post("/stations/{stationID}/upgrade", s.handleUpgradeStation)

			api.Get("/vehicles", s.handleListVehicles)
			api.Post("/vehicles", s.handlePurchaseVehicle)
			api.Delete("/vehicles/{vehicleID}", s.handleSellVehicle)
			api.Patch("/vehicles/{vehicleID}/config", s.handleConfigureVehicle)
			api.Get("/vehicles/{vehicleID}/route", s.handleGetVehicleRoute)
			api.Post("/vehicles/{vehicleID}/arrival", s.handleReportArrival)
			api.Post("/vehicles/{vehicleID}/return", s.handleReturnToStation)

			api.Get("/missions", s.handleListMissions)
			api.Post("/missions/generate", s.handleGenerateMission)
			api.Get("/missions/{missionID}", s.handleGetMission)
			api.Get("/missions/{missionID}/candidates", s.handleListCandidates)
			api.Post("/missions/{missionID}/dispatch", s.handleDispatch)
			api.Post("/missions/{missionID}/recall", s.handleRecall)
			api.Post("/missions/{missionID}/complete", s.handleCompleteMission)

			api.Get("/sync", s.handleSync)

			api.Get("/push/public-key", s.handlePushPublicKey)
			api.Post("/push/subscriptions", s.handleSavePushSubscription)
			api.Delete("/push/subscriptions", s.handleDeletePushSubscription)
		})
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		duration := time.Since(start)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", duration).
			Msg("http request")
	})
}
