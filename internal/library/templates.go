package library

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// ListTemplates returns every template ordered by name.
func (s *Service) ListTemplates(ctx context.Context) ([]Template, error) {
	if err := s.ready(opListTemplates); err != nil {
		return nil, err
	}
	templates, err := s.store.ListTemplates(ctx)
	if err != nil {
		return nil, s.storageError(opListTemplates, reasonReadFailed, err)
	}
	return templates, nil
}

func (s *Service) GetTemplate(ctx context.Context, id string) (Template, error) {
	if err := s.ready(opGetTemplate); err != nil {
		return Template{}, err
	}
	template, err := s.store.GetTemplate(ctx, strings.TrimSpace(id))
	if errors.Is(err, ErrRecordAbsent) {
		return Template{}, newServiceError(opGetTemplate, reasonNotFound, ErrNotFound, err)
	}
	if err != nil {
		return Template{}, s.storageError(opGetTemplate, reasonReadFailed, err, zap.String(fieldTemplateID, id))
	}
	return template, nil
}

func (s *Service) CreateTemplate(ctx context.Context, input TemplateInput) (Template, error) {
	if err := s.ready(opCreateTemplate); err != nil {
		return Template{}, err
	}
	input = normalizeTemplateInput(input)
	if err := validateTemplateInput(&input); err != nil {
		return Template{}, newServiceError(opCreateTemplate, reasonInvalidInput, ErrValidation, err)
	}

	_, err := s.store.GetTemplate(ctx, input.ID)
	if err == nil {
		return Template{}, newServiceError(opCreateTemplate, reasonAlreadyExists, ErrConflict, nil)
	}
	if !errors.Is(err, ErrRecordAbsent) {
		return Template{}, s.storageError(opCreateTemplate, reasonReadFailed, err, zap.String(fieldTemplateID, input.ID))
	}

	now := s.nowMillis()
	createdAt := input.CreatedAt
	if createdAt <= 0 {
		createdAt = now
	}
	template := Template{
		ID:        input.ID,
		Name:      input.Name,
		Blocks:    cloneBlocks(input.Blocks),
		CreatedAt: createdAt,
		UpdatedAt: now,
	}
	if err := s.store.PutTemplate(ctx, template); err != nil {
		return Template{}, s.storageError(opCreateTemplate, reasonWriteFailed, err, zap.String(fieldTemplateID, template.ID))
	}

	s.publish([]string{template.ID}, ChangeKindTemplates)
	return template, nil
}

// UpdateTemplate follows the same optimistic protocol as UpdateComponent.
// Templates keep no version history.
func (s *Service) UpdateTemplate(ctx context.Context, id string, input TemplateInput, expectedUpdatedAt *int64) (int64, error) {
	if err := s.ready(opUpdateTemplate); err != nil {
		return 0, err
	}
	input.ID = id
	input = normalizeTemplateInput(input)
	if err := validateTemplateInput(&input); err != nil {
		return 0, newServiceError(opUpdateTemplate, reasonInvalidInput, ErrValidation, err)
	}

	current, err := s.store.GetTemplate(ctx, input.ID)
	if errors.Is(err, ErrRecordAbsent) {
		return 0, newServiceError(opUpdateTemplate, reasonNotFound, ErrNotFound, err)
	}
	if err != nil {
		return 0, s.storageError(opUpdateTemplate, reasonReadFailed, err, zap.String(fieldTemplateID, input.ID))
	}
	if isStale(expectedUpdatedAt, current.UpdatedAt) {
		return 0, newServiceError(opUpdateTemplate, reasonStaleUpdatedAt, ErrConflict, nil)
	}

	now := s.nowMillis()
	updated := Template{
		ID:        current.ID,
		Name:      input.Name,
		Blocks:    cloneBlocks(input.Blocks),
		CreatedAt: current.CreatedAt,
		UpdatedAt: now,
	}
	if err := s.store.PutTemplate(ctx, updated); err != nil {
		return 0, s.storageError(opUpdateTemplate, reasonWriteFailed, err, zap.String(fieldTemplateID, updated.ID))
	}

	s.publish([]string{updated.ID}, ChangeKindTemplates)
	return now, nil
}

// DeleteTemplate removes a template permanently. Deleting an absent id succeeds.
func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	if err := s.ready(opDeleteTemplate); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if err := s.store.DeleteTemplate(ctx, id); err != nil {
		return s.storageError(opDeleteTemplate, reasonWriteFailed, err, zap.String(fieldTemplateID, id))
	}
	s.publish([]string{id}, ChangeKindTemplates)
	return nil
}

func cloneBlocks(blocks []Block) []Block {
	cloned := make([]Block, 0, len(blocks))
	for _, block := range blocks {
		copied := Block{ComponentID: strings.TrimSpace(block.ComponentID)}
		if block.CustomHTML != nil && *block.CustomHTML != "" {
			customHTML := *block.CustomHTML
			copied.CustomHTML = &customHTML
		}
		cloned = append(cloned, copied)
	}
	return cloned
}
