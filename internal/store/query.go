package store

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
)

// schoolRow is one row of the schools x school_images join. A school
// without images yields a single row with a NULL ImageID.
type schoolRow struct {
	ID        uint
	Name      string
	Address   string
	City      string
	State     string
	Contact   string
	EmailID   string
	CreatedAt time.Time
	ImageID   *uint
}

// joined selects every school with its image ids in one round trip,
// newest school first and images in insertion order.
func (s *Store) joined(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("schools AS s").
		Select("s.id, s.name, s.address, s.city, s.state, s.contact, s.email_id, s.created_at, i.id AS image_id").
		Joins("LEFT JOIN school_images AS i ON i.school_id = s.id").
		Order("s.created_at DESC").
		Order("s.id DESC").
		Order("i.id ASC")
}

// foldRows groups join rows by school, preserving row order. The result
// is never nil so it encodes as [] rather than null.
func foldRows(rows []schoolRow) []School {
	schools := make([]School, 0, len(rows))
	index := make(map[uint]int, len(rows))

	for _, r := range rows {
		i, seen := index[r.ID]
		if !seen {
			schools = append(schools, School{
				ID:        r.ID,
				Name:      r.Name,
				Address:   r.Address,
				City:      r.City,
				State:     r.State,
				Contact:   r.Contact,
				EmailID:   r.EmailID,
				Images:    []string{},
				CreatedAt: r.CreatedAt,
			})
			i = len(schools) - 1
			index[r.ID] = i
		}
		if r.ImageID != nil {
			schools[i].Images = append(schools[i].Images, formatID(*r.ImageID))
		}
	}
	return schools
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// escapeLike makes user input match literally inside LIKE ... ESCAPE '!'.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
