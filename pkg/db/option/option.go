// Package option provides composable gorm query modifiers.
package option

import (
	"strings"

	"github.com/fitdesk/fitdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a gorm query before execution.
type QueryOption func(*gorm.DB) *gorm.DB

// QuerySortBy restricts sortable columns to an allow list.
type QuerySortBy struct {
	Field string
	Desc  bool
	Allow map[string]bool
}

// WithSortBy orders results by an allowed column, newest first by default.
func WithSortBy(sort QuerySortBy) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(sort.Field)
		if field == "" || !sort.Allow[field] {
			field = "created_at"
		}
		direction := "ASC"
		if sort.Desc || field == "created_at" {
			direction = "DESC"
		}
		return tx.Order(field + " " + direction + ", id DESC")
	}
}

// ApplyPagination applies cursor paging, fetching one extra row as a has-more probe.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		size := page.PageSize
		if size <= 0 {
			size = 50
		}
		if page.PageToken != "" {
			cursor, err := pagination.DecodeCursor(page.PageToken)
			if err == nil {
				tx = tx.Where(
					"(created_at, id) < (?, ?)",
					cursor.CreatedAt,
					cursor.ID,
				)
			}
		}
		return tx.Limit(size + 1)
	}
}

// WithPreload eagerly loads an association.
func WithPreload(association string) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Preload(association)
	}
}
