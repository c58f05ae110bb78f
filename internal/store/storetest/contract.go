// Package storetest holds the behavioural contract every library.RecordStore
// implementation is tested against.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/MarcoPoloResearchLab/snippets/backend/internal/library"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) library.RecordStore

// Run exercises the RecordStore contract against stores built by factory.
func Run(t *testing.T, factory Factory) {
	t.Run("components ordered by name", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		for _, component := range []library.Component{
			sampleComponent("b", "Beta"),
			sampleComponent("a", "Alpha"),
			sampleComponent("c", "Gamma"),
		} {
			require.NoError(t, store.PutComponent(ctx, component))
		}
		components, err := store.ListComponents(ctx)
		require.NoError(t, err)
		require.Len(t, components, 3)
		require.Equal(t, []string{"Alpha", "Beta", "Gamma"}, []string{components[0].Name, components[1].Name, components[2].Name})
	})

	t.Run("component put replaces by id", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		original := sampleComponent("a", "Alpha")
		require.NoError(t, store.PutComponent(ctx, original))

		replaced := original
		replaced.Name = "Alpha2"
		replaced.Favorite = false
		replaced.FolderID = nil
		replaced.UpdatedAt = original.UpdatedAt + 10
		require.NoError(t, store.PutComponent(ctx, replaced))

		stored, err := store.GetComponent(ctx, "a")
		require.NoError(t, err)
		require.Equal(t, replaced, stored)

		components, err := store.ListComponents(ctx)
		require.NoError(t, err)
		require.Len(t, components, 1)
	})

	t.Run("missing component is absent", func(t *testing.T) {
		store := factory(t)
		_, err := store.GetComponent(context.Background(), "missing")
		require.True(t, errors.Is(err, library.ErrRecordAbsent), "got %v", err)
		require.NoError(t, store.DeleteComponent(context.Background(), "missing"))
	})

	t.Run("trash ordered by deletion time", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		for index, id := range []string{"old", "new", "mid"} {
			deletedAt := map[string]int64{"old": 100, "new": 300, "mid": 200}[id]
			entry := library.TrashEntry{Component: sampleComponent(id, fmt.Sprintf("name-%d", index)), DeletedAt: deletedAt}
			require.NoError(t, store.PutTrash(ctx, entry))
		}
		entries, err := store.ListTrash(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		require.Equal(t, []string{"new", "mid", "old"}, []string{entries[0].ID, entries[1].ID, entries[2].ID})

		entry, err := store.GetTrash(ctx, "mid")
		require.NoError(t, err)
		require.Equal(t, int64(200), entry.DeletedAt)
		require.Equal(t, []string{"tag"}, entry.Tags)

		require.NoError(t, store.DeleteTrash(ctx, "mid"))
		_, err = store.GetTrash(ctx, "mid")
		require.True(t, errors.Is(err, library.ErrRecordAbsent))

		require.NoError(t, store.ClearTrash(ctx))
		entries, err = store.ListTrash(ctx)
		require.NoError(t, err)
		require.Empty(t, entries)
	})

	t.Run("templates keep block order", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		custom := "<p>custom</p>"
		template := library.Template{
			ID:        "t1",
			Name:      "Page",
			Blocks:    []library.Block{{ComponentID: "b"}, {ComponentID: "a", CustomHTML: &custom}, {ComponentID: "b"}},
			CreatedAt: 1,
			UpdatedAt: 2,
		}
		require.NoError(t, store.PutTemplate(ctx, template))
		stored, err := store.GetTemplate(ctx, "t1")
		require.NoError(t, err)
		require.Equal(t, template, stored)

		templates, err := store.ListTemplates(ctx)
		require.NoError(t, err)
		require.Len(t, templates, 1)

		require.NoError(t, store.DeleteTemplate(ctx, "t1"))
		_, err = store.GetTemplate(ctx, "t1")
		require.True(t, errors.Is(err, library.ErrRecordAbsent))
	})

	t.Run("versions newest first and pruned", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		for index := 1; index <= 25; index++ {
			require.NoError(t, store.AppendVersion(ctx, library.ComponentVersion{
				ComponentID: "c1",
				Name:        fmt.Sprintf("v%d", index),
				Category:    "other",
				HTML:        "<p/>",
				CreatedAt:   int64(1000 + index),
			}))
		}
		require.NoError(t, store.AppendVersion(ctx, library.ComponentVersion{ComponentID: "c2", Name: "other", Category: "other", HTML: "<p/>", CreatedAt: 1}))

		require.NoError(t, store.PruneVersions(ctx, "c1", 20))
		versions, err := store.ListVersions(ctx, "c1", 100)
		require.NoError(t, err)
		require.Len(t, versions, 20)
		require.Equal(t, "v25", versions[0].Name)
		require.Equal(t, "v6", versions[19].Name)
		require.NotZero(t, versions[0].ID)

		limited, err := store.ListVersions(ctx, "c1", 5)
		require.NoError(t, err)
		require.Len(t, limited, 5)

		others, err := store.ListVersions(ctx, "c2", 20)
		require.NoError(t, err)
		require.Len(t, others, 1)
	})

	t.Run("folders replaced wholesale", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		first := library.FolderSet{
			"header": {Label: "Header", Icon: "📌", Color: "#0984e3"},
			"footer": {Label: "Footer", Icon: "📎", Color: "#636e72"},
		}
		require.NoError(t, store.ReplaceFolders(ctx, first))
		folders, err := store.ListFolders(ctx)
		require.NoError(t, err)
		require.Equal(t, first, folders)

		second := library.FolderSet{"news": {Label: "News", Icon: "📁", Color: "#b2bec3"}}
		require.NoError(t, store.ReplaceFolders(ctx, second))
		folders, err = store.ListFolders(ctx)
		require.NoError(t, err)
		require.Equal(t, second, folders)

		require.NoError(t, store.ReplaceFolders(ctx, library.FolderSet{}))
		folders, err = store.ListFolders(ctx)
		require.NoError(t, err)
		require.Empty(t, folders)
	})

	t.Run("markers survive emptied records", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		present, err := store.HasMarker(ctx, "defaults_seeded")
		require.NoError(t, err)
		require.False(t, present)

		require.NoError(t, store.PutMarker(ctx, "defaults_seeded", 1700000000000))
		require.NoError(t, store.PutMarker(ctx, "defaults_seeded", 1700000009999))
		require.NoError(t, store.ReplaceFolders(ctx, library.FolderSet{}))
		require.NoError(t, store.ClearTrash(ctx))

		present, err = store.HasMarker(ctx, "defaults_seeded")
		require.NoError(t, err)
		require.True(t, present)
		present, err = store.HasMarker(ctx, "other")
		require.NoError(t, err)
		require.False(t, present)
	})
}

func sampleComponent(id, name string) library.Component {
	folderID := "folder-1"
	return library.Component{
		ID:        id,
		Name:      name,
		Category:  "header",
		HTML:      "<p>" + name + "</p>",
		Tags:      []string{"tag"},
		Favorite:  true,
		FolderID:  &folderID,
		CreatedAt: 1700000000000,
		UpdatedAt: 1700000000500,
	}
}
