package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/camden-git/faceattend/config"
	"github.com/camden-git/faceattend/database"
	"github.com/camden-git/faceattend/media"
	"github.com/camden-git/faceattend/repository"
)

// openAttendanceStore builds the configured store. The returned func releases
// it.
func openAttendanceStore(cfg config.Config, logger *zap.Logger) (repository.AttendanceStoreInterface, func(), error) {
	switch cfg.AttendanceStore {
	case config.AttendanceStoreSQLite:
		db, err := database.InitGormDB(cfg.DatabasePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open attendance database: %w", err)
		}
		if err := database.AutoMigrateModels(db); err != nil {
			return nil, nil, err
		}
		store, err := repository.NewAttendanceRecordRepository(db)
		if err != nil {
			return nil, nil, err
		}
		closer := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		logger.Info("using sqlite attendance store", zap.String("path", cfg.DatabasePath))
		return store, closer, nil
	default:
		store, err := repository.NewAttendanceLogRepository(cfg.AttendanceLogPath, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using daily log attendance store", zap.String("dir", cfg.AttendanceLogPath))
		return store, func() {}, nil
	}
}

func newGalleryStore(cfg config.Config, logger *zap.Logger) *media.GalleryStore {
	return media.NewGalleryStore(cfg.GalleryPath, cfg.EnrollMaxSize, logger)
}

// checkDetector fails fast when the detector model is missing.
func checkDetector(cfg config.Config, logger *zap.Logger) error {
	detector, err := media.NewDetector(cfg, logger)
	if err != nil {
		return err
	}
	return detector.Close()
}
