package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"sitegen-backend/internal/model"
	"sitegen-backend/internal/service"
	"sitegen-backend/internal/utils"
	"sitegen-backend/pkg/logger"
)

type WorkspaceHandler struct {
	workspace *service.WorkspaceService
	heartbeat time.Duration
}

func NewWorkspaceHandler(workspace *service.WorkspaceService, heartbeat time.Duration) *WorkspaceHandler {
	return &WorkspaceHandler{
		workspace: workspace,
		heartbeat: heartbeat,
	}
}

// Generate streams one generation turn as server-sent events: status, preview,
// message, then result or error, then [DONE].
func (h *WorkspaceHandler) Generate(c *gin.Context) {
	sessionID := c.Param("session_id")

	var req model.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		respondError(c, service.ErrEmptyPrompt)
		return
	}

	input := service.TurnInput{
		Prompt:   req.Prompt,
		Provider: model.ProviderID(req.Provider),
		UserID:   userID(c),
	}
	// Precondition failures are answered as plain JSON before the stream opens.
	sess, err := h.workspace.Precheck(sessionID, input)
	if err != nil {
		respondError(c, err)
		return
	}

	sse := utils.NewSSEWriter(c.Writer)
	ctx, cancel := context.WithCancel(c.Request.Context())

	var wg sync.WaitGroup
	if h.heartbeat > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.sendHeartbeats(ctx, sse)
		}()
	}
	defer wg.Wait()
	// cancel must run before wg.Wait so the heartbeat goroutine exits.
	defer cancel()

	sse.WriteJSON("status", gin.H{
		"type":       "generation_start",
		"session_id": sessionID,
		"timestamp":  time.Now().Unix(),
	})

	outcome := h.workspace.Run(ctx, sess, input, func(ev model.PreviewEvent) {
		if err := sse.WriteJSON("preview", ev); err != nil {
			logger.Warnf("Failed to write preview: %v", err)
		}
	})

	if outcome.Turn != nil {
		sse.WriteJSON("message", outcome.Turn)
	}

	switch {
	case outcome.Success != nil:
		sse.WriteJSON("result", model.GenerationResult{
			SessionID: sessionID,
			Index:     outcome.Success.Index,
			Version:   outcome.Success.Index + 1,
			Document:  outcome.Success.Document,
			Turn:      *outcome.Turn,
		})
	case outcome.Failure.Kind == model.ErrCancelled:
		return
	default:
		sse.WriteJSON("error", model.GenerationFailure{
			SessionID: sessionID,
			Kind:      outcome.Failure.Kind,
			Error:     outcome.Failure.Message,
			Turn:      outcome.Turn,
			Timestamp: time.Now().Unix(),
		})
	}
	sse.Close()
}

func (h *WorkspaceHandler) sendHeartbeats(ctx context.Context, sse *utils.SSEWriter) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := sse.WriteJSON("heartbeat", gin.H{"type": "heartbeat", "timestamp": time.Now().Unix()}); err != nil {
				logger.Warnf("Heartbeat failed: %v", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *WorkspaceHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	// An empty body opens a blank session.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	sess, err := h.workspace.CreateSession(c.Request.Context(), req, userID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sess.State())
}

func (h *WorkspaceHandler) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sessions": h.workspace.List(),
	})
}

func (h *WorkspaceHandler) GetSession(c *gin.Context) {
	sess, err := h.workspace.Get(c.Param("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sess.State())
}

func (h *WorkspaceHandler) DeleteSession(c *gin.Context) {
	if err := h.workspace.Delete(c.Param("session_id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session deleted successfully"})
}

func (h *WorkspaceHandler) Revert(c *gin.Context) {
	var req model.RevertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, turn, err := h.workspace.Revert(c.Param("session_id"), *req.Index)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"index":    *req.Index,
		"document": doc,
		"message":  turn,
	})
}

func (h *WorkspaceHandler) Reset(c *gin.Context) {
	turn, err := h.workspace.Reset(c.Param("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": turn})
}

func (h *WorkspaceHandler) Version(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be a number"})
		return
	}

	doc, err := h.workspace.Version(c.Param("session_id"), index)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"index":    index,
		"version":  index + 1,
		"document": doc,
	})
}

func (h *WorkspaceHandler) Diff(c *gin.Context) {
	from, errFrom := strconv.Atoi(c.Query("from"))
	to, errTo := strconv.Atoi(c.Query("to"))
	if errFrom != nil || errTo != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to must be version indexes"})
		return
	}

	diff, err := h.workspace.Diff(c.Param("session_id"), from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	c.String(http.StatusOK, diff)
}

// Export downloads the current document as index.html.
func (h *WorkspaceHandler) Export(c *gin.Context) {
	doc, err := h.workspace.Current(c.Param("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="index.html"`)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(doc.Content))
}

func (h *WorkspaceHandler) Save(c *gin.Context) {
	var req model.SaveProjectRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	project, turn, err := h.workspace.Save(c.Request.Context(), c.Param("session_id"), userID(c), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"project": project,
		"message": turn,
	})
}
