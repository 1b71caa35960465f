package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"

	"github.com/xxxsen/richnote/internal/pkg/errcode"
	appErr "github.com/xxxsen/richnote/internal/pkg/errors"
	"github.com/xxxsen/richnote/internal/pkg/response"
	"github.com/xxxsen/richnote/internal/service"
)

type PublishHandler struct {
	publisher *service.PublishService
}

func NewPublishHandler(publisher *service.PublishService) *PublishHandler {
	return &PublishHandler{publisher: publisher}
}

func (h *PublishHandler) Publish(c *gin.Context) {
	res, err := h.publisher.Publish(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		if appErr.IsNotFound(err) {
			handleError(c, err)
			return
		}
		response.Error(c, errcode.ErrPublishFailed, "publish failed")
		return
	}
	response.Success(c, res)
}

func (h *PublishHandler) PublishAll(c *gin.Context) {
	published, err := h.publisher.PublishAll(c.Request.Context(), getUserID(c))
	failed := len(multierr.Errors(err))
	if err != nil && published == 0 {
		response.Error(c, errcode.ErrPublishFailed, "publish failed")
		return
	}
	response.Success(c, gin.H{"published": published, "failed": failed})
}
