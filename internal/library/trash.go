package library

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// ListTrash returns soft-deleted components, most recently deleted first.
func (s *Service) ListTrash(ctx context.Context) ([]TrashEntry, error) {
	if err := s.ready(opListTrash); err != nil {
		return nil, err
	}
	entries, err := s.store.ListTrash(ctx)
	if err != nil {
		return nil, s.storageError(opListTrash, reasonReadFailed, err)
	}
	return entries, nil
}

// RestoreComponent moves a trashed component back to the live table with a
// fresh updatedAt.
func (s *Service) RestoreComponent(ctx context.Context, id string) (Component, error) {
	if err := s.ready(opRestoreComponent); err != nil {
		return Component{}, err
	}
	id = strings.TrimSpace(id)

	entry, err := s.store.GetTrash(ctx, id)
	if errors.Is(err, ErrRecordAbsent) {
		return Component{}, newServiceError(opRestoreComponent, reasonNotFound, ErrNotFound, err)
	}
	if err != nil {
		return Component{}, s.storageError(opRestoreComponent, reasonReadFailed, err, zap.String(fieldComponentID, id))
	}

	// A live component created under the same id after the deletion wins.
	_, err = s.store.GetComponent(ctx, id)
	if err == nil {
		return Component{}, newServiceError(opRestoreComponent, reasonLiveExists, ErrConflict, nil)
	}
	if !errors.Is(err, ErrRecordAbsent) {
		return Component{}, s.storageError(opRestoreComponent, reasonReadFailed, err, zap.String(fieldComponentID, id))
	}

	restored := entry.Restored(s.nowMillis())
	if err := s.store.PutComponent(ctx, restored); err != nil {
		return Component{}, s.storageError(opRestoreComponent, reasonWriteFailed, err, zap.String(fieldComponentID, id))
	}
	if err := s.store.DeleteTrash(ctx, id); err != nil {
		return Component{}, s.storageError(opRestoreComponent, reasonWriteFailed, err, zap.String(fieldComponentID, id))
	}

	s.publish([]string{id}, ChangeKindComponents, ChangeKindTrash)
	return restored, nil
}

// PurgeTrashEntry permanently removes one trashed component.
func (s *Service) PurgeTrashEntry(ctx context.Context, id string) error {
	if err := s.ready(opPurgeTrashEntry); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if err := s.store.DeleteTrash(ctx, id); err != nil {
		return s.storageError(opPurgeTrashEntry, reasonWriteFailed, err, zap.String(fieldComponentID, id))
	}
	s.publish([]string{id}, ChangeKindTrash)
	return nil
}

// PurgeTrash permanently removes every trashed component.
func (s *Service) PurgeTrash(ctx context.Context) error {
	if err := s.ready(opPurgeTrash); err != nil {
		return err
	}
	if err := s.store.ClearTrash(ctx); err != nil {
		return s.storageError(opPurgeTrash, reasonWriteFailed, err)
	}
	s.publish(nil, ChangeKindTrash)
	return nil
}
