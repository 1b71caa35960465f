package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/richnote/internal/pkg/response"
	"github.com/xxxsen/richnote/internal/service"
)

type EntryHandler struct {
	entries *service.EntryService
}

func NewEntryHandler(entries *service.EntryService) *EntryHandler {
	return &EntryHandler{entries: entries}
}

type entryRequest struct {
	OwnerID   string `json:"owner_id"`
	Locale    string `json:"locale"`
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	Body      string `json:"body"`
	Enabled   *bool  `json:"enabled"`
	SortOrder int    `json:"sort_order"`
}

func (r entryRequest) input() service.EntryInput {
	return service.EntryInput{
		OwnerID:   r.OwnerID,
		Locale:    r.Locale,
		Title:     r.Title,
		Slug:      r.Slug,
		Body:      r.Body,
		Enabled:   r.Enabled,
		SortOrder: r.SortOrder,
	}
}

func (h *EntryHandler) Create(c *gin.Context) {
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, "invalid request")
		return
	}
	entry, err := h.entries.Create(c.Request.Context(), getUserID(c), req.input())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, entry)
}

func (h *EntryHandler) List(c *gin.Context) {
	limit, offset := parsePage(c)
	entries, err := h.entries.List(c.Request.Context(), getUserID(c), limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, entries)
}

func (h *EntryHandler) Get(c *gin.Context) {
	id, ok := parseEntryID(c)
	if !ok {
		return
	}
	entry, err := h.entries.Get(c.Request.Context(), getUserID(c), id)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, entry)
}

func (h *EntryHandler) Update(c *gin.Context) {
	id, ok := parseEntryID(c)
	if !ok {
		return
	}
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, "invalid request")
		return
	}
	entry, err := h.entries.Update(c.Request.Context(), getUserID(c), id, req.input())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, entry)
}

func (h *EntryHandler) Delete(c *gin.Context) {
	id, ok := parseEntryID(c)
	if !ok {
		return
	}
	if err := h.entries.Delete(c.Request.Context(), getUserID(c), id, queryBool(c, "force")); err != nil {
		handleError(c, err)
		return
	}
	response.Ack(c)
}

func (h *EntryHandler) References(c *gin.Context) {
	id, ok := parseEntryID(c)
	if !ok {
		return
	}
	refs, err := h.entries.References(c.Request.Context(), getUserID(c), id)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, refs)
}
