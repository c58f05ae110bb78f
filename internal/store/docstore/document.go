package docstore

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/MarcoPoloResearchLab/snippets/backend/internal/library"
)

// SchemaVersion tags every document written by this package.
const SchemaVersion = 1

const (
	documentComponents = "components"
	documentTemplates  = "templates"
	documentTrash      = "trash"
	documentVersions   = "versions"
	documentFolders    = "folders"
	documentMarkers    = "markers"
)

// DocumentNames lists every document a Store reads or writes.
var DocumentNames = []string{documentComponents, documentTemplates, documentTrash, documentVersions, documentFolders, documentMarkers}

// corruptSuffix names the copy a malformed document is preserved under before
// the first rewrite replaces it.
const corruptSuffix = ".corrupt-"

type marker struct {
	Name      string `json:"name"`
	CreatedAt int64  `json:"createdAt"`
}

type itemsEnvelope[T any] struct {
	SchemaVersion int `json:"schemaVersion"`
	Items         []T `json:"items"`
}

type foldersEnvelope struct {
	SchemaVersion int               `json:"schemaVersion"`
	Folders       library.FolderSet `json:"folders"`
}

var errMalformedDocument = errors.New("document is neither an item array nor an items envelope")

// decodeItems accepts both the envelope and a bare array.
func decodeItems[T any](data []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var envelope itemsEnvelope[T]
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	if envelope.Items == nil && envelope.SchemaVersion == 0 {
		return nil, errMalformedDocument
	}
	return envelope.Items, nil
}

func encodeItems[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.MarshalIndent(itemsEnvelope[T]{SchemaVersion: SchemaVersion, Items: items}, "", "  ")
}

// decodeFolders accepts the envelope and a bare key→folder object.
func decodeFolders(data []byte) (library.FolderSet, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return library.FolderSet{}, nil
	}
	var envelope foldersEnvelope
	if err := json.Unmarshal(trimmed, &envelope); err == nil && envelope.SchemaVersion != 0 {
		if envelope.Folders == nil {
			envelope.Folders = library.FolderSet{}
		}
		return envelope.Folders, nil
	}
	var bare library.FolderSet
	if err := json.Unmarshal(trimmed, &bare); err != nil {
		return nil, err
	}
	if bare == nil {
		bare = library.FolderSet{}
	}
	return bare, nil
}

func encodeFolders(folders library.FolderSet) ([]byte, error) {
	if folders == nil {
		folders = library.FolderSet{}
	}
	return json.MarshalIndent(foldersEnvelope{SchemaVersion: SchemaVersion, Folders: folders}, "", "  ")
}
