package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/richnote/internal/pkg/response"
	"github.com/xxxsen/richnote/internal/service"
)

// PropertiesHandler tells editors how to write embeds for this server.
type PropertiesHandler struct {
	content *service.ContentFactory
}

func NewPropertiesHandler(content *service.ContentFactory) *PropertiesHandler {
	return &PropertiesHandler{content: content}
}

func (h *PropertiesHandler) Get(c *gin.Context) {
	syntax := h.content.Syntax().Normalize()
	site := h.content.Site("")
	response.Success(c, gin.H{
		"properties": gin.H{
			"embed_tag":      syntax.Tag,
			"embed_id_attr":  syntax.IDAttr,
			"embed_example":  syntax.Element(1),
			"site_handle":    site.Handle,
			"default_locale": site.Locale,
		},
	})
}
