package appinfo

import (
	"sync/atomic"
	"time"
)

// Stats holds process-level counters surfaced on /health.
type Stats struct {
	StartTime time.Time

	schools    atomic.Int64
	images     atomic.Int64
	imageBytes atomic.Int64
}

type Snapshot struct {
	Schools    int64 `json:"schools"`
	Images     int64 `json:"images"`
	ImageBytes int64 `json:"image_bytes"`
}

func New() *Stats {
	return &Stats{StartTime: time.Now()}
}

// AddSchool: called after a school and its images are committed
func (s *Stats) AddSchool(images, bytes int64) {
	s.schools.Add(1)
	s.images.Add(images)
	s.imageBytes.Add(bytes)
}

// SetInitial: writes the totals read from the database at startup
func (s *Stats) SetInitial(schools, images, bytes int64) {
	s.schools.Store(schools)
	s.images.Store(images)
	s.imageBytes.Store(bytes)
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Schools:    s.schools.Load(),
		Images:     s.images.Load(),
		ImageBytes: s.imageBytes.Load(),
	}
}

func (s *Stats) Uptime() time.Duration {
	return time.Since(s.StartTime).Round(time.Second)
}
