package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sitegen-backend/internal/model"
	"sitegen-backend/internal/provider"
	"sitegen-backend/internal/service"
	"sitegen-backend/internal/utils"
	"sitegen-backend/pkg/logger"
)

const proxyAllowHeaders = "authorization, x-client-info, apikey, content-type"

type proxyPart struct {
	Text string `json:"text"`
}

type proxyContent struct {
	Parts []proxyPart `json:"parts"`
}

type proxyCandidate struct {
	Content proxyContent `json:"content"`
}

// proxyFrame is the Gemini streaming shape the browser client parses.
type proxyFrame struct {
	Candidates []proxyCandidate `json:"candidates"`
}

func frame(text string) proxyFrame {
	return proxyFrame{Candidates: []proxyCandidate{{Content: proxyContent{Parts: []proxyPart{{Text: text}}}}}}
}

type ProxyHandler struct {
	proxy *service.ProxyService
}

func NewProxyHandler(proxy *service.ProxyService) *ProxyHandler {
	return &ProxyHandler{proxy: proxy}
}

// CORS applies the proxy's fixed cross-origin headers to every response and answers
// preflight requests with an empty 204.
func (h *ProxyHandler) CORS(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Headers", proxyAllowHeaders)

	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}

// GenerateCode forwards the request to the vendor and re-emits its output as Gemini
// frames followed by [DONE].
func (h *ProxyHandler) GenerateCode(c *gin.Context) {
	var req model.ProxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	reader, err := h.proxy.Stream(c.Request.Context(), req)
	if err != nil {
		logger.Warnf("Proxy request rejected: %v", err)
		respondError(c, err)
		return
	}
	defer reader.Close()

	// The first event decides the status: an upstream failure before any output is
	// still reported as a plain JSON error.
	ev, err := reader.Recv()
	if err != nil {
		return
	}
	if ev.Kind == model.EventError {
		pe := provider.FromError(ev.Err)
		logger.Errorf("Proxy upstream error: %v", pe)
		c.JSON(upstreamStatus(pe), gin.H{"error": pe.Message})
		return
	}

	sse := utils.NewSSEWriter(c.Writer)
	for {
		switch ev.Kind {
		case model.EventDelta:
			if err := sse.WriteJSON("", frame(ev.Text)); err != nil {
				logger.Warnf("Proxy client went away: %v", err)
				return
			}
		case model.EventError:
			pe := provider.FromError(ev.Err)
			logger.Errorf("Proxy upstream error mid-stream: %v", pe)
			sse.WriteJSON("", gin.H{"error": gin.H{
				"code":    upstreamStatus(pe),
				"status":  string(pe.Kind),
				"message": pe.Message,
			}})
			return
		case model.EventDone:
			sse.Close()
			return
		}

		if ev, err = reader.Recv(); err != nil {
			return
		}
	}
}
