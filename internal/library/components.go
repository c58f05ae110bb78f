package library

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// ListComponents returns every live component ordered by name.
func (s *Service) ListComponents(ctx context.Context) ([]Component, error) {
	if err := s.ready(opListComponents); err != nil {
		return nil, err
	}
	components, err := s.store.ListComponents(ctx)
	if err != nil {
		return nil, s.storageError(opListComponents, reasonReadFailed, err)
	}
	return components, nil
}

// GetComponent returns the live component with the given id.
func (s *Service) GetComponent(ctx context.Context, id string) (Component, error) {
	if err := s.ready(opGetComponent); err != nil {
		return Component{}, err
	}
	component, err := s.store.GetComponent(ctx, strings.TrimSpace(id))
	if errors.Is(err, ErrRecordAbsent) {
		return Component{}, newServiceError(opGetComponent, reasonNotFound, ErrNotFound, err)
	}
	if err != nil {
		return Component{}, s.storageError(opGetComponent, reasonReadFailed, err, zap.String(fieldComponentID, id))
	}
	return component, nil
}

// CreateComponent stores a new component. The id is chosen by the caller and
// must not already be live.
func (s *Service) CreateComponent(ctx context.Context, input ComponentInput) (Component, error) {
	if err := s.ready(opCreateComponent); err != nil {
		return Component{}, err
	}
	input = normalizeComponentInput(input)
	if err := validateComponentInput(&input); err != nil {
		return Component{}, newServiceError(opCreateComponent, reasonInvalidInput, ErrValidation, err)
	}

	_, err := s.store.GetComponent(ctx, input.ID)
	if err == nil {
		return Component{}, newServiceError(opCreateComponent, reasonAlreadyExists, ErrConflict, nil)
	}
	if !errors.Is(err, ErrRecordAbsent) {
		return Component{}, s.storageError(opCreateComponent, reasonReadFailed, err, zap.String(fieldComponentID, input.ID))
	}

	now := s.nowMillis()
	createdAt := input.CreatedAt
	if createdAt <= 0 {
		createdAt = now
	}
	component := Component{
		ID:        input.ID,
		Name:      input.Name,
		Category:  normalizeCategory(input.Category),
		HTML:      input.HTML,
		Tags:      cloneStrings(input.Tags),
		Favorite:  input.Favorite,
		FolderID:  input.FolderID,
		CreatedAt: createdAt,
		UpdatedAt: now,
	}
	if err := s.store.PutComponent(ctx, component); err != nil {
		return Component{}, s.storageError(opCreateComponent, reasonWriteFailed, err, zap.String(fieldComponentID, component.ID))
	}

	s.publish([]string{component.ID}, ChangeKindComponents)
	return component, nil
}

// UpdateComponent overwrites the editable fields of a live component and returns
// the new updatedAt. When expectedUpdatedAt is positive and differs from the
// stored value the update is rejected with ErrConflict and nothing is written.
// A nil or non-positive baseline skips the check.
// The pre-update state is recorded as a version on a best-effort basis.
func (s *Service) UpdateComponent(ctx context.Context, id string, input ComponentInput, expectedUpdatedAt *int64) (int64, error) {
	if err := s.ready(opUpdateComponent); err != nil {
		return 0, err
	}
	input.ID = id
	input = normalizeComponentInput(input)
	if err := validateComponentInput(&input); err != nil {
		return 0, newServiceError(opUpdateComponent, reasonInvalidInput, ErrValidation, err)
	}

	current, err := s.store.GetComponent(ctx, input.ID)
	if errors.Is(err, ErrRecordAbsent) {
		return 0, newServiceError(opUpdateComponent, reasonNotFound, ErrNotFound, err)
	}
	if err != nil {
		return 0, s.storageError(opUpdateComponent, reasonReadFailed, err, zap.String(fieldComponentID, input.ID))
	}

	if isStale(expectedUpdatedAt, current.UpdatedAt) {
		return 0, newServiceError(opUpdateComponent, reasonStaleUpdatedAt, ErrConflict, nil)
	}

	now := s.nowMillis()
	s.recordVersion(ctx, current, now)

	updated := Component{
		ID:        current.ID,
		Name:      input.Name,
		Category:  normalizeCategory(input.Category),
		HTML:      input.HTML,
		Tags:      cloneStrings(input.Tags),
		Favorite:  input.Favorite,
		FolderID:  input.FolderID,
		CreatedAt: current.CreatedAt,
		UpdatedAt: now,
	}
	if err := s.store.PutComponent(ctx, updated); err != nil {
		return 0, s.storageError(opUpdateComponent, reasonWriteFailed, err, zap.String(fieldComponentID, updated.ID))
	}

	s.publish([]string{updated.ID}, ChangeKindComponents)
	return now, nil
}

// isStale reports whether a client baseline contradicts the stored updatedAt.
// Clients send 0 when they hold no baseline, so only positive values count.
func isStale(expectedUpdatedAt *int64, storedUpdatedAt int64) bool {
	return expectedUpdatedAt != nil && *expectedUpdatedAt > 0 && *expectedUpdatedAt != storedUpdatedAt
}

// recordVersion snapshots the pre-update state and trims history to the
// retention cap. Failures are logged and never block the update.
func (s *Service) recordVersion(ctx context.Context, current Component, capturedAt int64) {
	if err := s.store.AppendVersion(ctx, current.Snapshot(capturedAt)); err != nil {
		s.loggerOrDefault().Warn("component version not recorded",
			zap.String("operation", opRecordVersion),
			zap.String(fieldComponentID, current.ID),
			zap.Error(err))
		return
	}
	if err := s.store.PruneVersions(ctx, current.ID, MaxVersionsPerComponent); err != nil {
		s.loggerOrDefault().Warn("component versions not pruned",
			zap.String("operation", opRecordVersion),
			zap.String(fieldComponentID, current.ID),
			zap.Error(err))
	}
}

// DeleteComponent moves a live component to the trash. The trash copy is written
// before the live row is removed; deleting an absent id succeeds without effect.
func (s *Service) DeleteComponent(ctx context.Context, id string) error {
	if err := s.ready(opDeleteComponent); err != nil {
		return err
	}
	id = strings.TrimSpace(id)

	current, err := s.store.GetComponent(ctx, id)
	if errors.Is(err, ErrRecordAbsent) {
		return nil
	}
	if err != nil {
		return s.storageError(opDeleteComponent, reasonReadFailed, err, zap.String(fieldComponentID, id))
	}

	// The trash holds one entry per id; a newer deletion replaces the older one.
	previous, err := s.store.GetTrash(ctx, id)
	if err != nil && !errors.Is(err, ErrRecordAbsent) {
		return s.storageError(opDeleteComponent, reasonReadFailed, err, zap.String(fieldComponentID, id))
	}
	if err == nil {
		s.loggerOrDefault().Warn("trash entry replaced",
			zap.String("operation", opDeleteComponent),
			zap.String(fieldComponentID, id),
			zap.Int64("replaced_deleted_at", previous.DeletedAt))
	}

	entry := TrashEntry{Component: current, DeletedAt: s.nowMillis()}
	if err := s.store.PutTrash(ctx, entry); err != nil {
		return s.storageError(opDeleteComponent, reasonTrashCopyFailed, err, zap.String(fieldComponentID, id))
	}
	if err := s.store.DeleteComponent(ctx, id); err != nil {
		return s.storageError(opDeleteComponent, reasonWriteFailed, err, zap.String(fieldComponentID, id))
	}

	s.publish([]string{id}, ChangeKindComponents, ChangeKindTrash)
	return nil
}

// ToggleFavorite flips the favorite flag and returns the new state. The flag is
// presentation metadata: updatedAt is left untouched and no version is recorded.
func (s *Service) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	if err := s.ready(opToggleFavorite); err != nil {
		return false, err
	}
	id = strings.TrimSpace(id)

	current, err := s.store.GetComponent(ctx, id)
	if errors.Is(err, ErrRecordAbsent) {
		return false, newServiceError(opToggleFavorite, reasonNotFound, ErrNotFound, err)
	}
	if err != nil {
		return false, s.storageError(opToggleFavorite, reasonReadFailed, err, zap.String(fieldComponentID, id))
	}

	current.Favorite = !current.Favorite
	if err := s.store.PutComponent(ctx, current); err != nil {
		return false, s.storageError(opToggleFavorite, reasonWriteFailed, err, zap.String(fieldComponentID, id))
	}

	s.publish([]string{id}, ChangeKindComponents)
	return current.Favorite, nil
}

// ListVersions returns up to MaxVersionsPerComponent prior states of a
// component, newest first.
func (s *Service) ListVersions(ctx context.Context, componentID string) ([]ComponentVersion, error) {
	if err := s.ready(opListVersions); err != nil {
		return nil, err
	}
	componentID = strings.TrimSpace(componentID)
	if componentID == "" {
		return nil, newServiceError(opListVersions, reasonInvalidInput, ErrValidation, errors.New("componentId is required"))
	}
	versions, err := s.store.ListVersions(ctx, componentID, MaxVersionsPerComponent)
	if err != nil {
		return nil, s.storageError(opListVersions, reasonReadFailed, err, zap.String(fieldComponentID, componentID))
	}
	return versions, nil
}
