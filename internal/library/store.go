package library

import "context"

// RecordStore is the persistence adapter contract shared by every backend.
//
// Lists are ordered by name ascending except trash, which is ordered by
// deletedAt descending, and versions, which are newest first. Get methods return
// ErrRecordAbsent for missing ids. Implementations wrap failures to reach their
// backend with ErrUnavailable and treat unparseable stored documents as empty.
type RecordStore interface {
	ListComponents(ctx context.Context) ([]Component, error)
	GetComponent(ctx context.Context, id string) (Component, error)
	PutComponent(ctx context.Context, component Component) error
	DeleteComponent(ctx context.Context, id string) error

	ListTemplates(ctx context.Context) ([]Template, error)
	GetTemplate(ctx context.Context, id string) (Template, error)
	PutTemplate(ctx context.Context, template Template) error
	DeleteTemplate(ctx context.Context, id string) error

	ListTrash(ctx context.Context) ([]TrashEntry, error)
	GetTrash(ctx context.Context, id string) (TrashEntry, error)
	PutTrash(ctx context.Context, entry TrashEntry) error
	DeleteTrash(ctx context.Context, id string) error
	ClearTrash(ctx context.Context) error

	AppendVersion(ctx context.Context, version ComponentVersion) error
	PruneVersions(ctx context.Context, componentID string, keep int) error
	ListVersions(ctx context.Context, componentID string, limit int) ([]ComponentVersion, error)

	ListFolders(ctx context.Context) (FolderSet, error)
	// ReplaceFolders swaps the whole folder set. A failed replace must leave the
	// previous set in place.
	ReplaceFolders(ctx context.Context, folders FolderSet) error

	// HasMarker and PutMarker record one-time facts about the library, such as
	// default content having been seeded. Putting an existing marker is a no-op.
	HasMarker(ctx context.Context, name string) (bool, error)
	PutMarker(ctx context.Context, name string, at int64) error
}
