package sqlstore

import "github.com/MarcoPoloResearchLab/snippets/backend/internal/library"

const (
	TableComponents = "components"
	TableTemplates  = "templates"
	TableTrash      = "trash"
	TableVersions   = "component_versions"
	TableFolders    = "folders"
	TableMarkers    = "library_markers"
)

type componentRow struct {
	ID              string   `gorm:"column:id;primaryKey;size:190;not null"`
	Name            string   `gorm:"column:name;not null;index"`
	Category        string   `gorm:"column:category;size:190;not null"`
	HTML            string   `gorm:"column:html;type:text;not null"`
	Tags            []string `gorm:"column:tags;type:text;serializer:json"`
	Favorite        bool     `gorm:"column:favorite;not null"`
	FolderID        *string  `gorm:"column:folder_id;size:190"`
	CreatedAtMillis int64    `gorm:"column:created_at;not null"`
	UpdatedAtMillis int64    `gorm:"column:updated_at;not null"`
}

func (componentRow) TableName() string {
	return TableComponents
}

type trashRow struct {
	ID              string   `gorm:"column:id;primaryKey;size:190;not null"`
	Name            string   `gorm:"column:name;not null"`
	Category        string   `gorm:"column:category;size:190;not null"`
	HTML            string   `gorm:"column:html;type:text;not null"`
	Tags            []string `gorm:"column:tags;type:text;serializer:json"`
	Favorite        bool     `gorm:"column:favorite;not null"`
	FolderID        *string  `gorm:"column:folder_id;size:190"`
	CreatedAtMillis int64    `gorm:"column:created_at;not null"`
	UpdatedAtMillis int64    `gorm:"column:updated_at;not null"`
	DeletedAtMillis int64    `gorm:"column:deleted_at;not null;index"`
}

func (trashRow) TableName() string {
	return TableTrash
}

type versionRow struct {
	ID              int64    `gorm:"column:id;primaryKey;autoIncrement"`
	ComponentID     string   `gorm:"column:component_id;size:190;not null;index:idx_component_versions_component_created,priority:1"`
	Name            string   `gorm:"column:name;not null"`
	Category        string   `gorm:"column:category;size:190;not null"`
	HTML            string   `gorm:"column:html;type:text;not null"`
	Tags            []string `gorm:"column:tags;type:text;serializer:json"`
	CreatedAtMillis int64    `gorm:"column:created_at;not null;index:idx_component_versions_component_created,priority:2"`
}

func (versionRow) TableName() string {
	return TableVersions
}

type blockRow struct {
	ComponentID string  `json:"componentId"`
	CustomHTML  *string `json:"customHtml"`
}

type templateRow struct {
	ID              string     `gorm:"column:id;primaryKey;size:190;not null"`
	Name            string     `gorm:"column:name;not null;index"`
	Blocks          []blockRow `gorm:"column:blocks;type:text;serializer:json"`
	CreatedAtMillis int64      `gorm:"column:created_at;not null"`
	UpdatedAtMillis int64      `gorm:"column:updated_at;not null"`
}

func (templateRow) TableName() string {
	return TableTemplates
}

type folderRow struct {
	Key   string `gorm:"column:key;primaryKey;size:190;not null"`
	Label string `gorm:"column:label;not null"`
	Icon  string `gorm:"column:icon;not null"`
	Color string `gorm:"column:color;not null"`
}

func (folderRow) TableName() string {
	return TableFolders
}

// Models lists the row types AutoMigrate must create.
type markerRow struct {
	Name            string `gorm:"column:name;primaryKey;size:190;not null"`
	CreatedAtMillis int64  `gorm:"column:created_at;not null"`
}

func (markerRow) TableName() string {
	return TableMarkers
}

func Models() []any {
	return []any{&componentRow{}, &trashRow{}, &versionRow{}, &templateRow{}, &folderRow{}, &markerRow{}}
}

func toComponentRow(component library.Component) componentRow {
	return componentRow{
		ID:              component.ID,
		Name:            component.Name,
		Category:        component.Category,
		HTML:            component.HTML,
		Tags:            component.Tags,
		Favorite:        component.Favorite,
		FolderID:        component.FolderID,
		CreatedAtMillis: component.CreatedAt,
		UpdatedAtMillis: component.UpdatedAt,
	}
}

func (row componentRow) toDomain() library.Component {
	return library.Component{
		ID:        row.ID,
		Name:      row.Name,
		Category:  row.Category,
		HTML:      row.HTML,
		Tags:      row.Tags,
		Favorite:  row.Favorite,
		FolderID:  row.FolderID,
		CreatedAt: row.CreatedAtMillis,
		UpdatedAt: row.UpdatedAtMillis,
	}
}

func toTrashRow(entry library.TrashEntry) trashRow {
	return trashRow{
		ID:              entry.ID,
		Name:            entry.Name,
		Category:        entry.Category,
		HTML:            entry.HTML,
		Tags:            entry.Tags,
		Favorite:        entry.Favorite,
		FolderID:        entry.FolderID,
		CreatedAtMillis: entry.CreatedAt,
		UpdatedAtMillis: entry.UpdatedAt,
		DeletedAtMillis: entry.DeletedAt,
	}
}

func (row trashRow) toDomain() library.TrashEntry {
	return library.TrashEntry{
		Component: library.Component{
			ID:        row.ID,
			Name:      row.Name,
			Category:  row.Category,
			HTML:      row.HTML,
			Tags:      row.Tags,
			Favorite:  row.Favorite,
			FolderID:  row.FolderID,
			CreatedAt: row.CreatedAtMillis,
			UpdatedAt: row.UpdatedAtMillis,
		},
		DeletedAt: row.DeletedAtMillis,
	}
}

func (row versionRow) toDomain() library.ComponentVersion {
	return library.ComponentVersion{
		ID:          row.ID,
		ComponentID: row.ComponentID,
		Name:        row.Name,
		Category:    row.Category,
		HTML:        row.HTML,
		Tags:        row.Tags,
		CreatedAt:   row.CreatedAtMillis,
	}
}

func toTemplateRow(template library.Template) templateRow {
	blocks := make([]blockRow, 0, len(template.Blocks))
	for _, block := range template.Blocks {
		blocks = append(blocks, blockRow{ComponentID: block.ComponentID, CustomHTML: block.CustomHTML})
	}
	return templateRow{
		ID:              template.ID,
		Name:            template.Name,
		Blocks:          blocks,
		CreatedAtMillis: template.CreatedAt,
		UpdatedAtMillis: template.UpdatedAt,
	}
}

func (row templateRow) toDomain() library.Template {
	blocks := make([]library.Block, 0, len(row.Blocks))
	for _, block := range row.Blocks {
		blocks = append(blocks, library.Block{ComponentID: block.ComponentID, CustomHTML: block.CustomHTML})
	}
	return library.Template{
		ID:        row.ID,
		Name:      row.Name,
		Blocks:    blocks,
		CreatedAt: row.CreatedAtMillis,
		UpdatedAt: row.UpdatedAtMillis,
	}
}
