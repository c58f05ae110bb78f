package server

import (
	"fmt"
	"net/http"

	"github.com/MarcoPoloResearchLab/snippets/backend/internal/library"
	"github.com/gin-gonic/gin"
)

type componentRequestPayload struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Category  string   `json:"category"`
	HTML      string   `json:"html"`
	Tags      []string `json:"tags"`
	Favorite  bool     `json:"favorite"`
	FolderID  *string  `json:"folderId"`
	CreatedAt int64    `json:"createdAt"`
	UpdatedAt *int64   `json:"updatedAt"`
}

func (p componentRequestPayload) input() library.ComponentInput {
	return library.ComponentInput{
		ID:        p.ID,
		Name:      p.Name,
		Category:  p.Category,
		HTML:      p.HTML,
		Tags:      p.Tags,
		Favorite:  p.Favorite,
		FolderID:  p.FolderID,
		CreatedAt: p.CreatedAt,
	}
}

type updateResponsePayload struct {
	OK        bool  `json:"ok"`
	UpdatedAt int64 `json:"updatedAt"`
}

func (h *httpHandler) handleListComponents(c *gin.Context) {
	var (
		components []library.Component
		err        error
	)
	if h.cache != nil {
		components, err = h.cache.Components(c.Request.Context())
	} else {
		components, err = h.library.ListComponents(c.Request.Context())
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	if components == nil {
		components = []library.Component{}
	}
	c.JSON(http.StatusOK, components)
}

func (h *httpHandler) handleGetComponent(c *gin.Context) {
	component, err := h.library.GetComponent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, component)
}

func (h *httpHandler) handleCreateComponent(c *gin.Context) {
	var request componentRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondInvalidBody(c, err)
		return
	}
	component, err := h.library.CreateComponent(c.Request.Context(), request.input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, component)
}

func (h *httpHandler) handleUpdateComponent(c *gin.Context) {
	var request componentRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondInvalidBody(c, err)
		return
	}
	updatedAt, err := h.library.UpdateComponent(c.Request.Context(), c.Param("id"), request.input(), request.UpdatedAt)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updateResponsePayload{OK: true, UpdatedAt: updatedAt})
}

func (h *httpHandler) handleDeleteComponent(c *gin.Context) {
	if err := h.library.DeleteComponent(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *httpHandler) handleToggleFavorite(c *gin.Context) {
	favorite, err := h.library.ToggleFavorite(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorite": favorite})
}

func (h *httpHandler) handleExportComponent(c *gin.Context) {
	format, err := library.ParseFormat(c.Query("format"))
	if err != nil {
		h.respondInvalidBody(c, err)
		return
	}
	id := c.Param("id")
	encoded, err := h.library.ExportComponent(c.Request.Context(), id, format)
	if err != nil {
		h.respondError(c, err)
		return
	}
	writeAttachment(c, fmt.Sprintf("component-%s", id), format, encoded)
}

func (h *httpHandler) handleListVersions(c *gin.Context) {
	versions, err := h.library.ListVersions(c.Request.Context(), c.Query("componentId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if versions == nil {
		versions = []library.ComponentVersion{}
	}
	c.JSON(http.StatusOK, versions)
}

func (h *httpHandler) handleListTrash(c *gin.Context) {
	entries, err := h.library.ListTrash(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if entries == nil {
		entries = []library.TrashEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

func (h *httpHandler) handleRestoreComponent(c *gin.Context) {
	component, err := h.library.RestoreComponent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, component)
}

func (h *httpHandler) handlePurgeTrashEntry(c *gin.Context) {
	if err := h.library.PurgeTrashEntry(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *httpHandler) handlePurgeTrash(c *gin.Context) {
	if err := h.library.PurgeTrash(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
