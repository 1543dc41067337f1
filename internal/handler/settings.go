package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sitegen-backend/internal/config"
	"sitegen-backend/internal/model"
	"sitegen-backend/internal/provider"
	"sitegen-backend/internal/settings"
)

type SettingsHandler struct {
	cfg      *config.Config
	settings *settings.Service
	registry *provider.Registry
}

func NewSettingsHandler(cfg *config.Config, svc *settings.Service, registry *provider.Registry) *SettingsHandler {
	return &SettingsHandler{
		cfg:      cfg,
		settings: svc,
		registry: registry,
	}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.response())
}

func (h *SettingsHandler) Update(c *gin.Context) {
	var req model.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := h.registry.Get(model.ProviderID(req.Provider)); err != nil {
		respondError(c, err)
		return
	}

	_, err := h.settings.Update(settings.Settings{
		Provider:   req.Provider,
		BackendURL: req.BackendURL,
		Theme:      req.Theme,
	}, req.BackendKey)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.response())
}

func (h *SettingsHandler) SetCredential(c *gin.Context) {
	var req model.CredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("provider")
	if _, err := h.registry.Get(model.ProviderID(id)); err != nil {
		respondError(c, err)
		return
	}

	if err := h.settings.SetCredential(id, req.APIKey); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "API key saved"})
}

func (h *SettingsHandler) DeleteCredential(c *gin.Context) {
	if err := h.settings.DeleteCredential(c.Param("provider")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "API key removed"})
}

// response never includes key material, only whether a key is available.
func (h *SettingsHandler) response() model.SettingsResponse {
	current, loaded := h.settings.Get()

	ids := h.registry.IDs()
	names := make([]string, len(ids))
	credentials := make(map[string]bool, len(ids))
	for i, id := range ids {
		names[i] = string(id)
		credentials[names[i]] = h.settings.HasCredential(names[i]) || provider.ConfiguredKey(h.cfg, id) != ""
	}

	return model.SettingsResponse{
		Provider:       current.Provider,
		BackendURL:     current.BackendURL,
		HasBackendKey:  h.settings.HasBackendKey(),
		Theme:          current.Theme,
		Credentials:    credentials,
		Providers:      names,
		SettingsLoaded: loaded,
	}
}
