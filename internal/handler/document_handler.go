package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/richnote/internal/pkg/response"
	"github.com/xxxsen/richnote/internal/service"
)

type DocumentHandler struct {
	documents *service.DocumentService
	duplicate *service.DuplicateService
}

func NewDocumentHandler(documents *service.DocumentService, duplicate *service.DuplicateService) *DocumentHandler {
	return &DocumentHandler{documents: documents, duplicate: duplicate}
}

type documentRequest struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Locale  *string `json:"locale"`
}

func (h *DocumentHandler) Create(c *gin.Context) {
	var req documentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, "invalid request")
		return
	}
	if req.Title == "" {
		invalid(c, "title required")
		return
	}
	input := service.DocumentCreateInput{Title: req.Title, Content: req.Content}
	if req.Locale != nil {
		input.Locale = *req.Locale
	}
	doc, err := h.documents.Create(c.Request.Context(), getUserID(c), input)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	limit, offset := parsePage(c)
	docs, err := h.documents.List(c.Request.Context(), getUserID(c), limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) Update(c *gin.Context) {
	var req documentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, "invalid request")
		return
	}
	if req.Title == "" {
		invalid(c, "title required")
		return
	}
	doc, err := h.documents.Update(c.Request.Context(), getUserID(c), c.Param("id"), service.DocumentUpdateInput{
		Title:   req.Title,
		Content: req.Content,
		Locale:  req.Locale,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Ack(c)
}

func (h *DocumentHandler) Render(c *gin.Context) {
	res, err := h.documents.Render(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, res)
}

func (h *DocumentHandler) Chunks(c *gin.Context) {
	chunks, err := h.documents.Chunks(c.Request.Context(), getUserID(c), c.Param("id"), queryBool(c, "include_unresolved"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"count": len(chunks), "chunks": chunks})
}

type duplicateRequest struct {
	Deep  bool   `json:"deep"`
	Title string `json:"title"`
}

func (h *DocumentHandler) Duplicate(c *gin.Context) {
	var req duplicateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			invalid(c, "invalid request")
			return
		}
	}
	doc, err := h.duplicate.Duplicate(c.Request.Context(), getUserID(c), c.Param("id"), service.DuplicateOptions{
		Deep:  req.Deep,
		Title: req.Title,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}
