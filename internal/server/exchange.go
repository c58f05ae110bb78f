package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/snippets/backend/internal/library"
	"github.com/gin-gonic/gin"
)

const (
	exchangeKindComponents = "components"
	exchangeKindTemplates  = "templates"
)

var errUnknownExchangeKind = errors.New("kind must be components or templates")

func parseExchangeKind(value string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", exchangeKindComponents:
		return exchangeKindComponents, nil
	case exchangeKindTemplates:
		return exchangeKindTemplates, nil
	default:
		return "", errUnknownExchangeKind
	}
}

func (h *httpHandler) handleExport(c *gin.Context) {
	kind, err := parseExchangeKind(c.Query("kind"))
	if err != nil {
		h.respondInvalidBody(c, err)
		return
	}
	format, err := library.ParseFormat(c.Query("format"))
	if err != nil {
		h.respondInvalidBody(c, err)
		return
	}

	var encoded []byte
	if kind == exchangeKindTemplates {
		encoded, err = h.library.ExportTemplates(c.Request.Context(), format)
	} else {
		encoded, err = h.library.ExportAll(c.Request.Context(), format)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	writeAttachment(c, "snippets-"+kind, format, encoded)
}

func (h *httpHandler) handleImport(c *gin.Context) {
	kind, err := parseExchangeKind(c.Query("kind"))
	if err != nil {
		h.respondInvalidBody(c, err)
		return
	}
	format, err := library.ParseFormat(c.Query("format"))
	if err != nil {
		h.respondInvalidBody(c, err)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes))
	if err != nil {
		h.respondInvalidBody(c, err)
		return
	}

	var imported int
	if kind == exchangeKindTemplates {
		imported, err = h.library.ImportTemplates(c.Request.Context(), payload, format)
	} else {
		imported, err = h.library.ImportAll(c.Request.Context(), payload, format)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": imported})
}

func writeAttachment(c *gin.Context, baseName string, format library.Format, encoded []byte) {
	contentType := "application/json; charset=utf-8"
	extension := "json"
	if format == library.FormatYAML {
		contentType = "application/yaml; charset=utf-8"
		extension = "yaml"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", baseName+"."+extension))
	c.Data(http.StatusOK, contentType, encoded)
}
