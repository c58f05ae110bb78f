package library

import (
	"context"
	"strings"
)

// ListFolders returns the folder metadata keyed by folder key.
func (s *Service) ListFolders(ctx context.Context) (FolderSet, error) {
	if err := s.ready(opListFolders); err != nil {
		return nil, err
	}
	folders, err := s.store.ListFolders(ctx)
	if err != nil {
		return nil, s.storageError(opListFolders, reasonReadFailed, err)
	}
	if folders == nil {
		folders = FolderSet{}
	}
	return folders, nil
}

// ReplaceFolders swaps the whole folder set. Components keep their category
// keys even when the matching folder disappears.
func (s *Service) ReplaceFolders(ctx context.Context, folders FolderSet) error {
	if err := s.ready(opReplaceFolders); err != nil {
		return err
	}
	if err := validateFolderSet(folders); err != nil {
		return newServiceError(opReplaceFolders, reasonInvalidInput, ErrValidation, err)
	}

	normalized := make(FolderSet, len(folders))
	for key, folder := range folders {
		folder.Label = strings.TrimSpace(folder.Label)
		normalized[strings.TrimSpace(key)] = normalizeFolder(folder)
	}
	if err := s.store.ReplaceFolders(ctx, normalized); err != nil {
		return s.storageError(opReplaceFolders, reasonWriteFailed, err)
	}

	s.publish(nil, ChangeKindFolders)
	return nil
}
