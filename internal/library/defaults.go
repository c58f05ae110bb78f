package library

import (
	"context"

	"go.uber.org/zap"
)

const defaultFontStack = "-apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif"

// DefaultFolders returns the folder set installed into an empty library.
func DefaultFolders() FolderSet {
	return FolderSet{
		"header":        {Label: "Header", Icon: "📌", Color: "#0984e3"},
		"content":       {Label: "Content", Icon: "📝", Color: "#6c5ce7"},
		"callout":       {Label: "Callout", Icon: "💡", Color: "#fdcb6e"},
		"list":          {Label: "List", Icon: "📋", Color: "#00cec9"},
		"footer":        {Label: "Footer", Icon: "📎", Color: "#636e72"},
		DefaultCategory: {Label: "Other", Icon: "🔧", Color: DefaultFolderColor},
	}
}

// DefaultComponents returns the starter components installed into an empty
// library.
func DefaultComponents() []ComponentInput {
	return []ComponentInput{
		{
			ID:       "default-header",
			Name:     "Article header",
			Category: "header",
			HTML: `<div style="padding: 24px 0; border-bottom: 2px solid #e0e0e0; margin-bottom: 24px;">
  <h1 style="font-size: 24px; color: #2d3436; margin: 0 0 8px 0; font-family: ` + defaultFontStack + `;">Article title</h1>
  <p style="font-size: 14px; color: #636e72; margin: 0;">Last updated: XX/XX/XXXX</p>
</div>`,
		},
		{
			ID:       "default-info-callout",
			Name:     "Info callout",
			Category: "callout",
			HTML: `<div style="background: #dfe6e9; border-left: 4px solid #0984e3; padding: 16px 20px; border-radius: 4px; margin: 16px 0;">
  <p style="margin: 0; font-size: 14px; color: #2d3436; font-family: ` + defaultFontStack + `;">
    <strong>ℹ️ Information:</strong> Your informative text here.
  </p>
</div>`,
		},
		{
			ID:       "default-warning-callout",
			Name:     "Warning callout",
			Category: "callout",
			HTML: `<div style="background: #ffeaa7; border-left: 4px solid #fdcb6e; padding: 16px 20px; border-radius: 4px; margin: 16px 0;">
  <p style="margin: 0; font-size: 14px; color: #2d3436; font-family: ` + defaultFontStack + `;">
    <strong>⚠️ Warning:</strong> An important point to note.
  </p>
</div>`,
		},
		{
			ID:       "default-paragraph",
			Name:     "Paragraph",
			Category: "content",
			HTML:     `<p style="font-size: 15px; line-height: 1.6; color: #2d3436; margin: 12px 0; font-family: ` + defaultFontStack + `;">Body text goes here.</p>`,
		},
		{
			ID:       "default-footer",
			Name:     "Article footer",
			Category: "footer",
			HTML: `<div style="border-top: 1px solid #e0e0e0; margin-top: 32px; padding-top: 16px; font-size: 13px; color: #636e72; font-family: ` + defaultFontStack + `;">
  Need more help? Contact the support team.
</div>`,
		},
	}
}

// SeedResult reports what SeedDefaults installed.
type SeedResult struct {
	Folders    bool
	Components int
}

// MarkerDefaultsSeeded is stored once SeedDefaults has run against a library.
const MarkerDefaultsSeeded = "defaults_seeded"

// SeedDefaults installs the default folders when none are stored and the
// starter components when the library holds no live component. It runs once
// per library: after the first seed a user who empties the library keeps an
// empty library across restarts. Existing data is never touched.
func (s *Service) SeedDefaults(ctx context.Context) (SeedResult, error) {
	if err := s.ready(opSeedDefaults); err != nil {
		return SeedResult{}, err
	}
	var result SeedResult

	seeded, err := s.store.HasMarker(ctx, MarkerDefaultsSeeded)
	if err != nil {
		return result, s.storageError(opSeedDefaults, reasonReadFailed, err)
	}
	if seeded {
		return result, nil
	}

	folders, err := s.store.ListFolders(ctx)
	if err != nil {
		return result, s.storageError(opSeedDefaults, reasonReadFailed, err)
	}
	if len(folders) == 0 {
		if err := s.ReplaceFolders(ctx, DefaultFolders()); err != nil {
			return result, err
		}
		result.Folders = true
	}

	components, err := s.store.ListComponents(ctx)
	if err != nil {
		return result, s.storageError(opSeedDefaults, reasonReadFailed, err)
	}
	if len(components) == 0 {
		for _, input := range DefaultComponents() {
			if _, err := s.CreateComponent(ctx, input); err != nil {
				return result, err
			}
			result.Components++
		}
	}

	if err := s.store.PutMarker(ctx, MarkerDefaultsSeeded, s.nowMillis()); err != nil {
		return result, s.storageError(opSeedDefaults, reasonWriteFailed, err)
	}
	s.loggerOrDefault().Info("library defaults seeded",
		zap.Bool("folders", result.Folders),
		zap.Int("components", result.Components))
	return result, nil
}
