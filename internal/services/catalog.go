package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"github.com/mentorium/backend/internal/platform/envutil"
	"github.com/mentorium/backend/internal/platform/logger"
	"github.com/mentorium/backend/internal/types"
)

// CatalogRow is the three-column projection the mirror reads from upstream.
type CatalogRow struct {
	SyllabusEventID     int64
	ResourceReferenceID int64
	ResourceID          string
}

// CatalogSource reads the upstream syllabus→resource projection. The
// production source is the institutional Postgres catalog; tests supply a
// fixed slice.
type CatalogSource interface {
	Rows(ctx context.Context) ([]CatalogRow, error)
}

type pgxCatalogSource struct {
	pool  *pgxpool.Pool
	table string
}

// NewPgxCatalogSource connects to the upstream catalog with pgx. The table
// name is env-configurable because the projection view differs per campus.
func NewPgxCatalogSource(ctx context.Context) (CatalogSource, error) {
	url := envutil.Str("CATALOG_DATABASE_URL", "")
	if url == "" {
		return nil, fmt.Errorf("missing CATALOG_DATABASE_URL")
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("catalog pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("catalog ping: %w", err)
	}
	return &pgxCatalogSource{
		pool:  pool,
		table: envutil.Str("CATALOG_SOURCE_TABLE", "syllabus_resources"),
	}, nil
}

func (s *pgxCatalogSource) Rows(ctx context.Context) ([]CatalogRow, error) {
	q := fmt.Sprintf(
		"SELECT syllabus_event_id, resource_reference_id, resource_id FROM %s", s.table)
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("catalog query: %w", err)
	}
	defer rows.Close()

	var out []CatalogRow
	for rows.Next() {
		var r CatalogRow
		if err := rows.Scan(&r.SyllabusEventID, &r.ResourceReferenceID, &r.ResourceID); err != nil {
			return nil, fmt.Errorf("catalog scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CatalogService maintains the local SQLite mirror of the upstream catalog
// and answers the scope queries the ask flow needs.
type CatalogService interface {
	// Refresh replaces the local mirror with the upstream projection and
	// mirrors the syllabus→resource mapping into the library membership
	// store. Returns the number of mirrored rows.
	Refresh(ctx context.Context) (int, error)
	// AllowedResources is the resource-id allowlist for one syllabus.
	AllowedResources(ctx context.Context, syllabusEventID int64) ([]string, error)
	Entries(ctx context.Context, syllabusEventID int64) ([]types.CatalogEntry, error)
}

type catalogService struct {
	log     *logger.Logger
	source  CatalogSource
	db      *gorm.DB
	library LibraryService
}

func NewCatalogService(log *logger.Logger, source CatalogSource, db *gorm.DB, library LibraryService) (CatalogService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if source == nil {
		return nil, fmt.Errorf("catalog source required")
	}
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	if library == nil {
		return nil, fmt.Errorf("library required")
	}
	return &catalogService{
		log:     log.With("service", "CatalogService"),
		source:  source,
		db:      db,
		library: library,
	}, nil
}

func (s *catalogService) Refresh(ctx context.Context) (int, error) {
	rows, err := s.source.Rows(ctx)
	if err != nil {
		return 0, err
	}

	entries := make([]types.CatalogEntry, len(rows))
	for i, r := range rows {
		entries[i] = types.CatalogEntry{
			SyllabusEventID:     r.SyllabusEventID,
			ResourceReferenceID: r.ResourceReferenceID,
			ResourceID:          r.ResourceID,
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&types.CatalogEntry{}).Error; err != nil {
			return fmt.Errorf("catalog mirror clear: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(entries, 500).Error; err != nil {
			return fmt.Errorf("catalog mirror insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	// Each mirrored syllabus replaces its membership set wholesale so rows
	// dropped upstream fall out of the library too.
	bySyllabus := make(map[int64][]string)
	for _, r := range rows {
		if r.SyllabusEventID == 0 || r.ResourceID == "" {
			continue
		}
		bySyllabus[r.SyllabusEventID] = append(bySyllabus[r.SyllabusEventID], r.ResourceID)
	}
	for syllabusEventID, resourceIDs := range bySyllabus {
		if err := s.library.Replace(ctx, syllabusEventID, resourceIDs); err != nil {
			return 0, err
		}
	}

	s.log.Info("Catalog mirror refreshed", "rows", len(rows))
	return len(rows), nil
}

func (s *catalogService) AllowedResources(ctx context.Context, syllabusEventID int64) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&types.CatalogEntry{}).
		Where("syllabus_event_id = ?", syllabusEventID).
		Distinct().
		Pluck("resource_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("catalog allowlist: %w", err)
	}
	return ids, nil
}

func (s *catalogService) Entries(ctx context.Context, syllabusEventID int64) ([]types.CatalogEntry, error) {
	var entries []types.CatalogEntry
	err := s.db.WithContext(ctx).
		Where("syllabus_event_id = ?", syllabusEventID).
		Order("resource_id").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("catalog entries: %w", err)
	}
	return entries, nil
}
