// Package sqlstore implements library.RecordStore on top of gorm, for both the
// embedded SQLite file and a hosted Postgres database.
package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"

	"github.com/MarcoPoloResearchLab/snippets/backend/internal/library"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists library records in SQL tables.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ library.RecordStore = (*Store)(nil)

// New wraps an already migrated connection.
func New(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

func upsertByID() clause.OnConflict {
	return clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}
}

func (s *Store) ListComponents(ctx context.Context) ([]library.Component, error) {
	var rows []componentRow
	if err := s.db.WithContext(ctx).Order("name ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, classify(err)
	}
	components := make([]library.Component, 0, len(rows))
	for _, row := range rows {
		components = append(components, row.toDomain())
	}
	return components, nil
}

func (s *Store) GetComponent(ctx context.Context, id string) (library.Component, error) {
	var row componentRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return library.Component{}, classify(err)
	}
	return row.toDomain(), nil
}

func (s *Store) PutComponent(ctx context.Context, component library.Component) error {
	row := toComponentRow(component)
	return classify(s.db.WithContext(ctx).Clauses(upsertByID()).Create(&row).Error)
}

func (s *Store) DeleteComponent(ctx context.Context, id string) error {
	return classify(s.db.WithContext(ctx).Where("id = ?", id).Delete(&componentRow{}).Error)
}

func (s *Store) ListTemplates(ctx context.Context) ([]library.Template, error) {
	var rows []templateRow
	if err := s.db.WithContext(ctx).Order("name ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, classify(err)
	}
	templates := make([]library.Template, 0, len(rows))
	for _, row := range rows {
		templates = append(templates, row.toDomain())
	}
	return templates, nil
}

func (s *Store) GetTemplate(ctx context.Context, id string) (library.Template, error) {
	var row templateRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return library.Template{}, classify(err)
	}
	return row.toDomain(), nil
}

func (s *Store) PutTemplate(ctx context.Context, template library.Template) error {
	row := toTemplateRow(template)
	return classify(s.db.WithContext(ctx).Clauses(upsertByID()).Create(&row).Error)
}

func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	return classify(s.db.WithContext(ctx).Where("id = ?", id).Delete(&templateRow{}).Error)
}

func (s *Store) ListTrash(ctx context.Context) ([]library.TrashEntry, error) {
	var rows []trashRow
	if err := s.db.WithContext(ctx).Order("deleted_at DESC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, classify(err)
	}
	entries := make([]library.TrashEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toDomain())
	}
	return entries, nil
}

func (s *Store) GetTrash(ctx context.Context, id string) (library.TrashEntry, error) {
	var row trashRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return library.TrashEntry{}, classify(err)
	}
	return row.toDomain(), nil
}

func (s *Store) PutTrash(ctx context.Context, entry library.TrashEntry) error {
	row := toTrashRow(entry)
	return classify(s.db.WithContext(ctx).Clauses(upsertByID()).Create(&row).Error)
}

func (s *Store) DeleteTrash(ctx context.Context, id string) error {
	return classify(s.db.WithContext(ctx).Where("id = ?", id).Delete(&trashRow{}).Error)
}

func (s *Store) ClearTrash(ctx context.Context) error {
	return classify(s.db.WithContext(ctx).Where("1 = 1").Delete(&trashRow{}).Error)
}

func (s *Store) AppendVersion(ctx context.Context, version library.ComponentVersion) error {
	row := versionRow{
		ComponentID:     version.ComponentID,
		Name:            version.Name,
		Category:        version.Category,
		HTML:            version.HTML,
		Tags:            version.Tags,
		CreatedAtMillis: version.CreatedAt,
	}
	return classify(s.db.WithContext(ctx).Create(&row).Error)
}

func (s *Store) PruneVersions(ctx context.Context, componentID string, keep int) error {
	return classify(TrimVersions(s.db.WithContext(ctx), componentID, keep))
}

func (s *Store) ListVersions(ctx context.Context, componentID string, limit int) ([]library.ComponentVersion, error) {
	var rows []versionRow
	err := s.db.WithContext(ctx).
		Where("component_id = ?", componentID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, classify(err)
	}
	versions := make([]library.ComponentVersion, 0, len(rows))
	for _, row := range rows {
		versions = append(versions, row.toDomain())
	}
	return versions, nil
}

// TrimVersions deletes every version of a component beyond the keep most recent.
func TrimVersions(db *gorm.DB, componentID string, keep int) error {
	var retained []int64
	err := db.Model(&versionRow{}).
		Where("component_id = ?", componentID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(keep).
		Pluck("id", &retained).Error
	if err != nil {
		return err
	}
	query := db.Where("component_id = ?", componentID)
	if len(retained) > 0 {
		query = query.Where("id NOT IN ?", retained)
	}
	return query.Delete(&versionRow{}).Error
}

func (s *Store) ListFolders(ctx context.Context) (library.FolderSet, error) {
	var rows []folderRow
	if err := s.db.WithContext(ctx).Order("key ASC").Find(&rows).Error; err != nil {
		return nil, classify(err)
	}
	folders := make(library.FolderSet, len(rows))
	for _, row := range rows {
		folders[row.Key] = library.Folder{Label: row.Label, Icon: row.Icon, Color: row.Color}
	}
	return folders, nil
}

// ReplaceFolders runs delete-all and insert-all in one transaction, so a failed
// insert rolls the previous set back.
func (s *Store) ReplaceFolders(ctx context.Context, folders library.FolderSet) error {
	rows := make([]folderRow, 0, len(folders))
	for key, folder := range folders {
		rows = append(rows, folderRow{Key: key, Label: folder.Label, Icon: folder.Icon, Color: folder.Color})
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&folderRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		s.logger.Warn("folder replace rolled back", zap.Int("folders", len(rows)), zap.Error(err))
	}
	return classify(err)
}

func (s *Store) HasMarker(ctx context.Context, name string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&markerRow{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return false, classify(err)
	}
	return count > 0, nil
}

func (s *Store) PutMarker(ctx context.Context, name string, at int64) error {
	row := markerRow{Name: name, CreatedAtMillis: at}
	onConflict := clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}
	return classify(s.db.WithContext(ctx).Clauses(onConflict).Create(&row).Error)
}

// classify maps gorm and driver failures onto the RecordStore error contract.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return library.ErrRecordAbsent
	}
	if isUnavailable(err) {
		return fmt.Errorf("%w: %w", library.ErrUnavailable, err)
	}
	return err
}

func isUnavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	// database/sql does not export its closed-pool sentinel.
	if strings.Contains(err.Error(), "sql: database is closed") {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pathErr *fs.PathError
	return errors.As(err, &pathErr)
}
