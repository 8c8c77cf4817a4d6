package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"schooldir/pkg/logger"
	"schooldir/pkg/utils"
)

/*
Storage maintenance for the sqlite engine.

Deleted pages are not returned to the OS; SQLite reuses them for new writes,
so the file is left alone while it is mostly live data. Once more than half
of the pages sit on the freelist the WAL is checkpointed and the file is
rebuilt with VACUUM. School records are never pruned.
*/

const (
	DefaultMaintenanceInterval = 30 * time.Minute

	// bloatRatio: freelist share of the file that triggers VACUUM
	bloatRatio = 0.50
)

// StorageReport describes one maintenance pass.
type StorageReport struct {
	PageSize  int64
	Pages     int64
	FreePages int64
	Vacuumed  bool
}

func (r StorageReport) FileSize() int64 { return r.PageSize * r.Pages }
func (r StorageReport) FreeSize() int64 { return r.PageSize * r.FreePages }

func (r StorageReport) Bloated() bool {
	return r.Pages > 0 && float64(r.FreePages) > float64(r.Pages)*bloatRatio
}

// Maintain checkpoints the WAL and, if the file is bloated, vacuums it.
// It is a no-op for network engines.
func Maintain(ctx context.Context, db *gorm.DB) (StorageReport, error) {
	var report StorageReport
	if db.Dialector.Name() != "sqlite" {
		return report, nil
	}

	conn := db.WithContext(ctx)
	if err := conn.Raw("PRAGMA page_size").Scan(&report.PageSize).Error; err != nil {
		return report, fmt.Errorf("read page_size: %w", err)
	}
	if err := conn.Raw("PRAGMA page_count").Scan(&report.Pages).Error; err != nil {
		return report, fmt.Errorf("read page_count: %w", err)
	}
	if err := conn.Raw("PRAGMA freelist_count").Scan(&report.FreePages).Error; err != nil {
		return report, fmt.Errorf("read freelist_count: %w", err)
	}

	if !report.Bloated() {
		return report, conn.Exec("PRAGMA optimize").Error
	}

	logger.LogWarn("Database is bloated (%s of %s free). Starting VACUUM...",
		utils.FormatBytes(report.FreeSize()), utils.FormatBytes(report.FileSize()))

	// Commit the WAL to the main file before rebuilding it
	if err := conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error; err != nil {
		return report, fmt.Errorf("wal checkpoint: %w", err)
	}

	start := time.Now()
	if err := conn.Exec("VACUUM").Error; err != nil {
		return report, fmt.Errorf("vacuum: %w", err)
	}
	report.Vacuumed = true

	logger.LogInfo("VACUUM completed in %v.", time.Since(start).Round(time.Millisecond))
	return report, nil
}

// StartMaintenance runs Maintain immediately and then every interval
// until ctx is cancelled. A non-positive interval disables it.
func StartMaintenance(ctx context.Context, db *gorm.DB, interval time.Duration) {
	if interval <= 0 || db.Dialector.Name() != "sqlite" {
		return
	}

	logger.LogInfo("Storage maintenance started. Interval: %s", interval)

	run := func() {
		if _, err := Maintain(ctx, db); err != nil && ctx.Err() == nil {
			logger.LogError("Storage maintenance failed: %v", err)
		}
	}

	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
