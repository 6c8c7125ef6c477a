package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/camden-git/faceattend/realtime"
)

type RouterDeps struct {
	Session     *SessionHandler
	Gallery     *GalleryHandler
	Attendance  *AttendanceHandler
	Hub         *realtime.Hub
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
	Logger      *zap.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Faces-Detected"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(corsHandler.Handler)

	if deps.Hub != nil {
		r.Get("/ws", deps.Hub.ServeWS)
	}
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Route("/api", func(r chi.Router) {
			r.Get("/identities", deps.Gallery.ListIdentities)

			r.Route("/gallery", func(r chi.Router) {
				r.Get("/", deps.Gallery.ListGallery)
				r.Post("/", deps.Gallery.Enroll)
				r.Get("/preview", deps.Gallery.PreviewGalleryImage)
			})

			r.Route("/session", func(r chi.Router) {
				r.Get("/", deps.Session.GetSession)
				r.Post("/", deps.Session.StartSession)
				r.Delete("/", deps.Session.StopSession)
				r.Get("/frame", deps.Session.GetFrame)
				r.Get("/observations", deps.Session.GetObservations)
			})

			r.Route("/attendance", func(r chi.Router) {
				r.Get("/", deps.Attendance.ListAttendance)
				r.Get("/dates", deps.Attendance.ListDates)
			})
		})
	})

	return r
}
