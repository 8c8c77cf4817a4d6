// Package store is the query layer over the schools and school_images
// tables. It translates directory operations into SQL and reshapes rows
// into response objects.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"schooldir/internal/apperr"
	"schooldir/internal/appinfo"
	"schooldir/internal/database"
	"schooldir/internal/upload"
	"schooldir/pkg/logger"
)

const (
	// DefaultMaxConcurrentWrites bounds write transactions in flight.
	DefaultMaxConcurrentWrites = 10

	// imageInsertBatch keeps each INSERT well under server packet limits
	// (5 images x 5 MB).
	imageInsertBatch = 5
)

// School is the directory record as exposed over the API.
type School struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Contact   string    `json:"contact"`
	EmailID   string    `json:"email_id"`
	Images    []string  `json:"images"`
	CreatedAt time.Time `json:"created_at"`
}

// SchoolInput carries the scalar fields of a new school. Contact is raw
// user input and is normalized by CreateSchool.
type SchoolInput struct {
	Name    string
	Address string
	City    string
	State   string
	Contact string
	EmailID string
}

// Image is a stored photo with its original metadata.
type Image struct {
	ID        uint
	SchoolID  uint
	Filename  string
	MimeType  string
	Data      []byte
	CreatedAt time.Time
}

type Options struct {
	PhoneCountryCode    string
	MaxConcurrentWrites int
	Stats               *appinfo.Stats
}

type Store struct {
	db          *gorm.DB
	countryCode string
	writeGuard  chan struct{}
	stats       *appinfo.Stats
}

func New(db *gorm.DB, opts Options) *Store {
	if opts.PhoneCountryCode == "" {
		opts.PhoneCountryCode = DefaultCountryCode
	}
	if opts.MaxConcurrentWrites <= 0 {
		opts.MaxConcurrentWrites = DefaultMaxConcurrentWrites
	}
	if opts.Stats == nil {
		opts.Stats = appinfo.New()
	}
	return &Store{
		db:          db,
		countryCode: opts.PhoneCountryCode,
		writeGuard:  make(chan struct{}, opts.MaxConcurrentWrites),
		stats:       opts.Stats,
	}
}

func (s *Store) Stats() *appinfo.Stats {
	return s.stats
}

// CreateSchool inserts the school and all of its images in one
// transaction. If any insert fails nothing is kept.
func (s *Store) CreateSchool(ctx context.Context, in SchoolInput, files []upload.File) (School, error) {
	contact, err := NormalizePhone(in.Contact, s.countryCode)
	if err != nil {
		return School{}, err
	}

	row := database.School{
		Name:    strings.TrimSpace(in.Name),
		Address: strings.TrimSpace(in.Address),
		City:    strings.TrimSpace(in.City),
		State:   strings.TrimSpace(in.State),
		Contact: contact,
		EmailID: strings.TrimSpace(in.EmailID),
	}

	select {
	case s.writeGuard <- struct{}{}:
	case <-ctx.Done():
		return School{}, apperr.Persistence("Failed to create school", ctx.Err())
	}
	defer func() { <-s.writeGuard }()

	images := make([]database.SchoolImage, len(files))
	var totalBytes int64
	for i, f := range files {
		images[i] = database.SchoolImage{
			ImageName: f.Filename,
			ImageData: f.Data,
			MimeType:  f.MimeType,
		}
		totalBytes += int64(len(f.Data))
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert school: %w", err)
		}
		if len(images) == 0 {
			return nil
		}
		for i := range images {
			images[i].SchoolID = row.ID
		}
		if err := tx.CreateInBatches(&images, imageInsertBatch).Error; err != nil {
			return fmt.Errorf("insert images: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.LogError("Create school %q rolled back: %v", row.Name, err)
		return School{}, apperr.Persistence("Failed to create school", err)
	}

	s.stats.AddSchool(int64(len(images)), totalBytes)

	school := School{
		ID:        row.ID,
		Name:      row.Name,
		Address:   row.Address,
		City:      row.City,
		State:     row.State,
		Contact:   row.Contact,
		EmailID:   row.EmailID,
		Images:    make([]string, 0, len(images)),
		CreatedAt: row.CreatedAt,
	}
	for _, img := range images {
		school.Images = append(school.Images, formatID(img.ID))
	}
	return school, nil
}

// ListSchools returns every school, newest first, with its image ids.
func (s *Store) ListSchools(ctx context.Context) ([]School, error) {
	var rows []schoolRow
	if err := s.joined(ctx).Scan(&rows).Error; err != nil {
		return nil, apperr.Persistence("Failed to fetch schools", err)
	}
	return foldRows(rows), nil
}

// SearchSchools matches q case-insensitively as a substring of name, city
// or state. A blank query lists everything.
func (s *Store) SearchSchools(ctx context.Context, q string) ([]School, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return s.ListSchools(ctx)
	}

	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
	var rows []schoolRow
	err := s.joined(ctx).
		Where("LOWER(s.name) LIKE ? ESCAPE '!' OR LOWER(s.city) LIKE ? ESCAPE '!' OR LOWER(s.state) LIKE ? ESCAPE '!'",
			pattern, pattern, pattern).
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.Persistence("Failed to search schools", err)
	}
	return foldRows(rows), nil
}

func (s *Store) GetSchoolByID(ctx context.Context, id uint) (School, error) {
	var rows []schoolRow
	if err := s.joined(ctx).Where("s.id = ?", id).Scan(&rows).Error; err != nil {
		return School{}, apperr.Persistence("Failed to fetch school", err)
	}
	schools := foldRows(rows)
	if len(schools) == 0 {
		return School{}, apperr.NotFound(apperr.CodeSchoolNotFound, "School not found")
	}
	return schools[0], nil
}

func (s *Store) GetImage(ctx context.Context, id uint) (Image, error) {
	var row database.SchoolImage
	err := s.db.WithContext(ctx).
		Select("id", "school_id", "image_name", "image_data", "mime_type", "created_at").
		Where("id = ?", id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Image{}, apperr.NotFound(apperr.CodeImageNotFound, "Image not found")
	}
	if err != nil {
		return Image{}, apperr.Persistence("Failed to fetch image", err)
	}
	return Image{
		ID:        row.ID,
		SchoolID:  row.SchoolID,
		Filename:  row.ImageName,
		MimeType:  row.MimeType,
		Data:      row.ImageData,
		CreatedAt: row.CreatedAt,
	}, nil
}

// LoadStats seeds the in-memory counters from the store. Called once at
// startup; afterwards CreateSchool keeps them current.
func (s *Store) LoadStats(ctx context.Context) error {
	var schools int64
	if err := s.db.WithContext(ctx).Model(&database.School{}).Count(&schools).Error; err != nil {
		return apperr.Persistence("Failed to count schools", err)
	}

	var images, size int64
	row := s.db.WithContext(ctx).Model(&database.SchoolImage{}).
		Select("COUNT(*), COALESCE(SUM(LENGTH(image_data)), 0)").Row()
	if err := row.Scan(&images, &size); err != nil {
		return apperr.Persistence("Failed to measure images", err)
	}

	s.stats.SetInitial(schools, images, size)
	return nil
}

// Ping reports whether the record store answers.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return apperr.Persistence("Database handle unavailable", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return apperr.Persistence("Database unreachable", err)
	}
	return nil
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
