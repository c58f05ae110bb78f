package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the encoding of exported and imported record arrays.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat resolves a user supplied format name; empty means JSON.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(FormatJSON):
		return FormatJSON, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", ErrValidation, value)
	}
}

// ExportAll encodes every live component as an array.
func (s *Service) ExportAll(ctx context.Context, format Format) ([]byte, error) {
	components, err := s.ListComponents(ctx)
	if err != nil {
		return nil, err
	}
	if components == nil {
		components = []Component{}
	}
	return encodeRecords(components, format)
}

// ExportComponent encodes a single component as a one-element array.
func (s *Service) ExportComponent(ctx context.Context, id string, format Format) ([]byte, error) {
	component, err := s.GetComponent(ctx, id)
	if err != nil {
		return nil, err
	}
	return encodeRecords([]Component{component}, format)
}

// ExportTemplates encodes every template as an array.
func (s *Service) ExportTemplates(ctx context.Context, format Format) ([]byte, error) {
	templates, err := s.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	if templates == nil {
		templates = []Template{}
	}
	return encodeRecords(templates, format)
}

// ImportAll upserts the components of an encoded array and returns how many
// were stored. Entries missing id, name or html are skipped; a payload that is
// not an array fails with ErrMalformedInput.
func (s *Service) ImportAll(ctx context.Context, payload []byte, format Format) (int, error) {
	if err := s.ready(opImport); err != nil {
		return 0, err
	}
	candidates, err := decodeRecords[Component](payload, format)
	if err != nil {
		return 0, newServiceError(opImport, reasonMalformed, ErrMalformedInput, err)
	}

	existing, err := s.store.ListComponents(ctx)
	if err != nil {
		return 0, s.storageError(opImport, reasonReadFailed, err)
	}
	byID := make(map[string]Component, len(existing))
	for _, component := range existing {
		byID[component.ID] = component
	}

	imported := 0
	ids := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		candidate.ID = strings.TrimSpace(candidate.ID)
		candidate.Name = strings.TrimSpace(candidate.Name)
		if candidate.ID == "" || candidate.Name == "" || candidate.HTML == "" {
			continue
		}
		now := s.nowMillis()
		candidate.Category = normalizeCategory(strings.TrimSpace(candidate.Category))
		if current, ok := byID[candidate.ID]; ok {
			if candidate.CreatedAt <= 0 {
				candidate.CreatedAt = current.CreatedAt
			}
		} else {
			candidate.CreatedAt = now
		}
		candidate.UpdatedAt = now
		if err := s.store.PutComponent(ctx, candidate); err != nil {
			return imported, s.storageError(opImport, reasonWriteFailed, err)
		}
		byID[candidate.ID] = candidate
		ids = append(ids, candidate.ID)
		imported++
	}

	if imported > 0 {
		s.publish(ids, ChangeKindComponents)
	}
	return imported, nil
}

// ImportTemplates upserts the templates of an encoded array. Entries missing id
// or name are skipped.
func (s *Service) ImportTemplates(ctx context.Context, payload []byte, format Format) (int, error) {
	if err := s.ready(opImport); err != nil {
		return 0, err
	}
	candidates, err := decodeRecords[Template](payload, format)
	if err != nil {
		return 0, newServiceError(opImport, reasonMalformed, ErrMalformedInput, err)
	}

	existing, err := s.store.ListTemplates(ctx)
	if err != nil {
		return 0, s.storageError(opImport, reasonReadFailed, err)
	}
	byID := make(map[string]Template, len(existing))
	for _, template := range existing {
		byID[template.ID] = template
	}

	imported := 0
	ids := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		candidate.ID = strings.TrimSpace(candidate.ID)
		candidate.Name = strings.TrimSpace(candidate.Name)
		if candidate.ID == "" || candidate.Name == "" {
			continue
		}
		now := s.nowMillis()
		candidate.Blocks = cloneBlocks(candidate.Blocks)
		if current, ok := byID[candidate.ID]; ok {
			if candidate.CreatedAt <= 0 {
				candidate.CreatedAt = current.CreatedAt
			}
		} else {
			candidate.CreatedAt = now
		}
		candidate.UpdatedAt = now
		if err := s.store.PutTemplate(ctx, candidate); err != nil {
			return imported, s.storageError(opImport, reasonWriteFailed, err)
		}
		byID[candidate.ID] = candidate
		ids = append(ids, candidate.ID)
		imported++
	}

	if imported > 0 {
		s.publish(ids, ChangeKindTemplates)
	}
	return imported, nil
}

func encodeRecords[T any](records []T, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		encoded, err := yaml.Marshal(records)
		if err != nil {
			return nil, newServiceError(opExport, reasonEncodeFailed, nil, err)
		}
		return encoded, nil
	case FormatJSON, "":
		encoded, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return nil, newServiceError(opExport, reasonEncodeFailed, nil, err)
		}
		return encoded, nil
	default:
		return nil, newServiceError(opExport, reasonInvalidInput, ErrValidation, fmt.Errorf("unknown format %q", format))
	}
}

// decodeRecords parses an array payload. Individual entries that do not decode
// into T are dropped so one bad row cannot sink an otherwise valid import.
func decodeRecords[T any](payload []byte, format Format) ([]T, error) {
	switch format {
	case FormatYAML:
		var document yaml.Node
		if err := yaml.Unmarshal(payload, &document); err != nil {
			return nil, err
		}
		if document.Kind != yaml.DocumentNode || len(document.Content) == 0 || document.Content[0].Kind != yaml.SequenceNode {
			return nil, errors.New("payload is not an array")
		}
		records := make([]T, 0, len(document.Content[0].Content))
		for _, item := range document.Content[0].Content {
			var record T
			if err := item.Decode(&record); err != nil {
				continue
			}
			records = append(records, record)
		}
		return records, nil
	case FormatJSON, "":
		var items []json.RawMessage
		if err := json.Unmarshal(payload, &items); err != nil {
			return nil, errors.New("payload is not an array")
		}
		records := make([]T, 0, len(items))
		for _, item := range items {
			var record T
			if err := json.Unmarshal(item, &record); err != nil {
				continue
			}
			records = append(records, record)
		}
		return records, nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}
