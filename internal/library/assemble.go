package library

import (
	"context"
	"errors"
	"html"
	"strings"

	"go.uber.org/zap"
)

const blockSeparator = "\n\n"

// MissingComponentHTML renders in place of a block whose component is gone.
func MissingComponentHTML(componentID string) string {
	return `<p style="color:red;">Component not found: ` + html.EscapeString(componentID) + `</p>`
}

// AssembleHTML concatenates the blocks of a template in order. A block's custom
// HTML wins over the component HTML; blocks that resolve to nothing are skipped.
func AssembleHTML(template Template, components map[string]Component) string {
	parts := make([]string, 0, len(template.Blocks))
	for _, block := range template.Blocks {
		var fragment string
		switch {
		case block.CustomHTML != nil && *block.CustomHTML != "":
			fragment = *block.CustomHTML
		default:
			component, ok := components[block.ComponentID]
			if !ok {
				fragment = MissingComponentHTML(block.ComponentID)
			} else {
				fragment = component.HTML
			}
		}
		if strings.TrimSpace(fragment) == "" {
			continue
		}
		parts = append(parts, fragment)
	}
	return strings.Join(parts, blockSeparator)
}

// RenderTemplate assembles the HTML document of a stored template.
func (s *Service) RenderTemplate(ctx context.Context, id string) (string, error) {
	template, err := s.GetTemplate(ctx, id)
	if err != nil {
		return "", err
	}
	components, err := s.store.ListComponents(ctx)
	if err != nil {
		return "", s.storageError(opRenderTemplate, reasonReadFailed, err, zap.String(fieldTemplateID, id))
	}
	return AssembleHTML(template, indexComponents(components)), nil
}

func indexComponents(components []Component) map[string]Component {
	indexed := make(map[string]Component, len(components))
	for _, component := range components {
		indexed[component.ID] = component
	}
	return indexed
}

// errNilCache guards Cache methods called on a nil receiver.
var errNilCache = errors.New("library cache is not initialised")
