package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sitegen-backend/internal/service"
)

// sandboxPolicy runs generated pages in an opaque origin: scripts work, but they
// cannot reach the host application's cookies or storage.
const sandboxPolicy = "sandbox allow-scripts allow-forms allow-modals allow-popups"

type PreviewHandler struct {
	workspace *service.WorkspaceService
}

func NewPreviewHandler(workspace *service.WorkspaceService) *PreviewHandler {
	return &PreviewHandler{workspace: workspace}
}

// Serve renders the current version, ?version=i, or with ?live=1 the in-progress
// preview of a running generation.
func (h *PreviewHandler) Serve(c *gin.Context) {
	c.Header("Content-Security-Policy", sandboxPolicy)
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Referrer-Policy", "no-referrer")
	c.Header("Cache-Control", "no-store")

	sess, err := h.workspace.Get(c.Param("session_id"))
	if err != nil {
		c.String(http.StatusNotFound, "session not found")
		return
	}

	if c.Query("live") == "1" {
		if content, ok := sess.LivePreview(); ok {
			c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(content))
			return
		}
	}

	if v := c.Query("version"); v != "" {
		index, err := strconv.Atoi(v)
		if err != nil {
			c.String(http.StatusBadRequest, "version must be a number")
			return
		}
		doc, err := sess.History().At(index)
		if err != nil {
			c.String(http.StatusNotFound, err.Error())
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(doc.Content))
		return
	}

	doc, ok := sess.History().Current()
	if !ok {
		c.String(http.StatusNotFound, "no document has been generated yet")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(doc.Content))
}
