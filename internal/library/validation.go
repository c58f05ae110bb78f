package library

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const maxIdentifierLength = 190

func normalizeComponentInput(input ComponentInput) ComponentInput {
	input.ID = strings.TrimSpace(input.ID)
	input.Name = strings.TrimSpace(input.Name)
	input.Category = strings.TrimSpace(input.Category)
	if input.FolderID != nil {
		folderID := strings.TrimSpace(*input.FolderID)
		if folderID == "" {
			input.FolderID = nil
		} else {
			input.FolderID = &folderID
		}
	}
	return input
}

func validateComponentInput(input *ComponentInput) error {
	return validation.ValidateStruct(input,
		validation.Field(&input.ID, validation.Required, validation.Length(1, maxIdentifierLength)),
		validation.Field(&input.Name, validation.Required),
		validation.Field(&input.HTML, validation.Required),
		validation.Field(&input.Category, validation.Length(0, maxIdentifierLength)),
	)
}

func normalizeTemplateInput(input TemplateInput) TemplateInput {
	input.ID = strings.TrimSpace(input.ID)
	input.Name = strings.TrimSpace(input.Name)
	return input
}

func validateTemplateInput(input *TemplateInput) error {
	return validation.ValidateStruct(input,
		validation.Field(&input.ID, validation.Required, validation.Length(1, maxIdentifierLength)),
		validation.Field(&input.Name, validation.Required),
		validation.Field(&input.Blocks, validation.Each(validation.By(validateBlock))),
	)
}

func validateBlock(value interface{}) error {
	block, ok := value.(Block)
	if !ok {
		return errors.New("must be a block")
	}
	if strings.TrimSpace(block.ComponentID) == "" {
		return errors.New("componentId is required")
	}
	return nil
}

func validateFolderSet(folders FolderSet) error {
	for key, folder := range folders {
		if strings.TrimSpace(key) == "" {
			return errors.New("folder key is required")
		}
		if err := validation.Validate(key, validation.Length(1, maxIdentifierLength)); err != nil {
			return err
		}
		if err := validation.Validate(folder.Label, validation.Required); err != nil {
			return errors.New("folder " + key + ": label is required")
		}
	}
	return nil
}
