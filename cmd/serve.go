package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/camden-git/faceattend/handlers"
	"github.com/camden-git/faceattend/media"
	"github.com/camden-git/faceattend/metrics"
	"github.com/camden-git/faceattend/realtime"
	"github.com/camden-git/faceattend/services"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var autoStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, live preview and websocket feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.ensure()
			if err != nil {
				return err
			}
			if err := checkDetector(cfg, logger); err != nil {
				return err
			}

			store, closeStore, err := openAttendanceStore(cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			registry := prometheus.NewRegistry()
			registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			recognitionMetrics, err := metrics.NewRecognitionMetrics(registry)
			if err != nil {
				return err
			}

			runCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			hub := realtime.NewHub(logger)
			go hub.Run(runCtx)

			gallery := newGalleryStore(cfg, logger)
			service := services.NewRecognitionService(cfg, gallery, store, hub, recognitionMetrics, logger)

			router := handlers.NewRouter(handlers.RouterDeps{
				Session: &handlers.SessionHandler{Service: service, Logger: logger},
				Gallery: &handlers.GalleryHandler{
					Gallery:        gallery,
					Service:        service,
					NewDetector:    func() (media.Detector, error) { return media.NewDetector(cfg, logger) },
					TrainDetection: cfg.TrainDetection,
					Logger:         logger,
				},
				Attendance:  &handlers.AttendanceHandler{Store: store, Logger: logger},
				Hub:         hub,
				Gatherer:    registry,
				CORSOrigins: cfg.CORSOrigins,
				Logger:      logger,
			})

			if autoStart {
				if _, err := service.Start(runCtx); err != nil {
					return fmt.Errorf("failed to start attendance session: %w", err)
				}
			}

			server := &http.Server{
				Addr:        cfg.HTTPAddr,
				Handler:     router,
				ReadTimeout: 10 * time.Second,
				// websocket and frame streaming responses outlive a short write timeout
				WriteTimeout: 0,
				IdleTimeout:  120 * time.Second,
			}

			serveErr := make(chan error, 1)
			go func() {
				logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				serveErr <- server.ListenAndServe()
			}()

			select {
			case err := <-serveErr:
				if !errors.Is(err, http.ErrServerClosed) {
					_ = service.Shutdown(context.Background())
					return fmt.Errorf("http server failed: %w", err)
				}
			case <-runCtx.Done():
				logger.Info("shutting down")
			}

			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancelShutdown()
			if err := service.Shutdown(shutdownCtx); err != nil {
				logger.Warn("failed to stop attendance session cleanly", zap.Error(err))
			}
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("http shutdown: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&autoStart, "start-session", false, "Start an attendance session immediately")
	return cmd
}
