package library

import (
	"time"

	"go.uber.org/zap"
)

const (
	opServiceNew       = "library.service.new"
	opListComponents   = "library.list_components"
	opGetComponent     = "library.get_component"
	opCreateComponent  = "library.create_component"
	opUpdateComponent  = "library.update_component"
	opDeleteComponent  = "library.delete_component"
	opToggleFavorite   = "library.toggle_favorite"
	opListTrash        = "library.list_trash"
	opRestoreComponent = "library.restore_component"
	opPurgeTrashEntry  = "library.purge_trash_entry"
	opPurgeTrash       = "library.purge_trash"
	opListVersions     = "library.list_versions"
	opRecordVersion    = "library.record_version"
	opListTemplates    = "library.list_templates"
	opGetTemplate      = "library.get_template"
	opCreateTemplate   = "library.create_template"
	opUpdateTemplate   = "library.update_template"
	opDeleteTemplate   = "library.delete_template"
	opRenderTemplate   = "library.render_template"
	opListFolders      = "library.list_folders"
	opReplaceFolders   = "library.replace_folders"
	opExport           = "library.export"
	opImport           = "library.import"
	opSeedDefaults     = "library.seed_defaults"

	reasonMissingStore    = "missing_store"
	reasonInvalidInput    = "invalid_input"
	reasonAlreadyExists   = "already_exists"
	reasonLiveExists      = "live_exists"
	reasonNotFound        = "not_found"
	reasonStaleUpdatedAt  = "stale_updated_at"
	reasonReadFailed      = "read_failed"
	reasonWriteFailed     = "write_failed"
	reasonTrashCopyFailed = "trash_copy_failed"
	reasonMalformed       = "malformed_payload"
	reasonEncodeFailed    = "encode_failed"

	fieldComponentID = "component_id"
	fieldTemplateID  = "template_id"
)

var noOpLogger = zap.NewNop()

// ServiceConfig describes the dependencies of the record service.
type ServiceConfig struct {
	Store  RecordStore
	Clock  func() time.Time
	Logger *zap.Logger
	Feed   *ChangeFeed
}

// Service layers optimistic concurrency, trash and version retention on top of
// a RecordStore.
//
// The read-check-write sequence of an update is not atomic: two writers that
// read the same updatedAt before either writes can both succeed. Version
// pruning runs after the insert, so the retained count can briefly exceed
// MaxVersionsPerComponent under concurrent updates and settles on the next one.
type Service struct {
	store  RecordStore
	clock  func() time.Time
	logger *zap.Logger
	feed   *ChangeFeed
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, reasonMissingStore, nil, errMissingStore)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		store:  cfg.Store,
		clock:  clock,
		logger: logger,
		feed:   cfg.Feed,
	}, nil
}

// Feed returns the change feed mutations are published to, if any.
func (s *Service) Feed() *ChangeFeed {
	return s.feed
}

func (s *Service) ready(operation string) error {
	if s == nil || s.store == nil {
		s.logError(operation, reasonMissingStore, errMissingStore)
		return newServiceError(operation, reasonMissingStore, nil, errMissingStore)
	}
	return nil
}

func (s *Service) nowMillis() int64 {
	return UnixMillis(s.clock())
}

func (s *Service) storageError(operation, reason string, err error, fields ...zap.Field) error {
	s.logError(operation, reason, err, fields...)
	return newServiceError(operation, reason, storageKind(err), err)
}

func (s *Service) publish(ids []string, kinds ...ChangeKind) {
	if s.feed == nil {
		return
	}
	s.feed.Publish(ChangeEvent{
		Kinds:     kinds,
		IDs:       ids,
		Timestamp: s.clock().UTC(),
	})
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("library service error", attrs...)
}
