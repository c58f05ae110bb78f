package library

import "time"

const (
	// MaxVersionsPerComponent bounds the retained history of a single component.
	MaxVersionsPerComponent = 20
	// DefaultCategory is assigned to components stored without a category.
	DefaultCategory = "other"
	// DefaultFolderIcon is assigned to folders stored without an icon.
	DefaultFolderIcon = "📁"
	// DefaultFolderColor is assigned to folders stored without a color.
	DefaultFolderColor = "#b2bec3"
)

// Component is a named, categorized reusable HTML fragment.
type Component struct {
	ID        string   `json:"id" yaml:"id"`
	Name      string   `json:"name" yaml:"name"`
	Category  string   `json:"category" yaml:"category"`
	HTML      string   `json:"html" yaml:"html"`
	Tags      []string `json:"tags" yaml:"tags"`
	Favorite  bool     `json:"favorite" yaml:"favorite"`
	FolderID  *string  `json:"folderId" yaml:"folderId"`
	CreatedAt int64    `json:"createdAt" yaml:"createdAt"`
	UpdatedAt int64    `json:"updatedAt" yaml:"updatedAt"`
}

// ComponentVersion captures the state of a component immediately before an update.
type ComponentVersion struct {
	ID          int64    `json:"id"`
	ComponentID string   `json:"componentId"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	HTML        string   `json:"html"`
	Tags        []string `json:"tags"`
	CreatedAt   int64    `json:"createdAt"`
}

// TrashEntry is a soft-deleted component snapshot.
type TrashEntry struct {
	Component
	DeletedAt int64 `json:"deletedAt"`
}

// Block references a component from a template. CustomHTML, when present,
// replaces the component's HTML for this placement only.
type Block struct {
	ComponentID string  `json:"componentId" yaml:"componentId"`
	CustomHTML  *string `json:"customHtml" yaml:"customHtml"`
}

// Template is an ordered assembly of component blocks.
type Template struct {
	ID        string  `json:"id" yaml:"id"`
	Name      string  `json:"name" yaml:"name"`
	Blocks    []Block `json:"blocks" yaml:"blocks"`
	CreatedAt int64   `json:"createdAt" yaml:"createdAt"`
	UpdatedAt int64   `json:"updatedAt" yaml:"updatedAt"`
}

// Folder holds the presentation metadata of a component grouping key.
type Folder struct {
	Label string `json:"label"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// FolderSet maps folder keys to their metadata.
type FolderSet map[string]Folder

// ComponentInput carries the caller-editable fields of a component.
type ComponentInput struct {
	ID        string
	Name      string
	Category  string
	HTML      string
	Tags      []string
	Favorite  bool
	FolderID  *string
	CreatedAt int64
}

// TemplateInput carries the caller-editable fields of a template.
type TemplateInput struct {
	ID        string
	Name      string
	Blocks    []Block
	CreatedAt int64
}

// Snapshot returns the version entry recording the component's current state.
func (c Component) Snapshot(capturedAt int64) ComponentVersion {
	return ComponentVersion{
		ComponentID: c.ID,
		Name:        c.Name,
		Category:    c.Category,
		HTML:        c.HTML,
		Tags:        cloneStrings(c.Tags),
		CreatedAt:   capturedAt,
	}
}

// Restored strips the trash metadata and returns the live component.
func (entry TrashEntry) Restored(updatedAt int64) Component {
	component := entry.Component
	component.UpdatedAt = updatedAt
	return component
}

// UnixMillis converts a time to the millisecond timestamps stored on records.
func UnixMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	copied := make([]string, len(values))
	copy(copied, values)
	return copied
}

func normalizeCategory(category string) string {
	if category == "" {
		return DefaultCategory
	}
	return category
}

func normalizeFolder(folder Folder) Folder {
	if folder.Icon == "" {
		folder.Icon = DefaultFolderIcon
	}
	if folder.Color == "" {
		folder.Color = DefaultFolderColor
	}
	return folder
}
