package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/snippets/backend/internal/library"
	"github.com/gin-gonic/gin"
)

type templateRequestPayload struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Blocks    []library.Block `json:"blocks"`
	CreatedAt int64           `json:"createdAt"`
	UpdatedAt *int64          `json:"updatedAt"`
}

func (p templateRequestPayload) input() library.TemplateInput {
	return library.TemplateInput{
		ID:        p.ID,
		Name:      p.Name,
		Blocks:    p.Blocks,
		CreatedAt: p.CreatedAt,
	}
}

func (h *httpHandler) handleListTemplates(c *gin.Context) {
	templates, err := h.library.ListTemplates(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if templates == nil {
		templates = []library.Template{}
	}
	c.JSON(http.StatusOK, templates)
}

func (h *httpHandler) handleGetTemplate(c *gin.Context) {
	template, err := h.library.GetTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, template)
}

func (h *httpHandler) handleCreateTemplate(c *gin.Context) {
	var request templateRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondInvalidBody(c, err)
		return
	}
	template, err := h.library.CreateTemplate(c.Request.Context(), request.input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, template)
}

func (h *httpHandler) handleUpdateTemplate(c *gin.Context) {
	var request templateRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondInvalidBody(c, err)
		return
	}
	updatedAt, err := h.library.UpdateTemplate(c.Request.Context(), c.Param("id"), request.input(), request.UpdatedAt)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updateResponsePayload{OK: true, UpdatedAt: updatedAt})
}

func (h *httpHandler) handleDeleteTemplate(c *gin.Context) {
	if err := h.library.DeleteTemplate(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *httpHandler) handleRenderTemplate(c *gin.Context) {
	var (
		html string
		err  error
	)
	if h.cache != nil {
		html, err = h.cache.RenderTemplate(c.Request.Context(), c.Param("id"))
	} else {
		html, err = h.library.RenderTemplate(c.Request.Context(), c.Param("id"))
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (h *httpHandler) handleListFolders(c *gin.Context) {
	var (
		folders library.FolderSet
		err     error
	)
	if h.cache != nil {
		folders, err = h.cache.Folders(c.Request.Context())
	} else {
		folders, err = h.library.ListFolders(c.Request.Context())
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, folders)
}

func (h *httpHandler) handleReplaceFolders(c *gin.Context) {
	var request library.FolderSet
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondInvalidBody(c, err)
		return
	}
	if err := h.library.ReplaceFolders(c.Request.Context(), request); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
