package model

type GenerateRequest struct {
	Prompt   string `json:"prompt" binding:"required"`
	Provider string `json:"provider"`
}

type CreateSessionRequest struct {
	Title           string `json:"title"`
	ProjectID       string `json:"project_id"`
	InitialDocument string `json:"initial_document"`
}

type RevertRequest struct {
	Index *int `json:"index" binding:"required"`
}

type SaveProjectRequest struct {
	Name string `json:"name"`
}

type UpdateSettingsRequest struct {
	Provider   string  `json:"provider" binding:"required"`
	BackendURL string  `json:"backend_url"`
	BackendKey *string `json:"backend_key"`
	Theme      string  `json:"theme" binding:"required"`
}

type CredentialRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}

// ProxyRequest is the body accepted by the generate-code proxy endpoint.
type ProxyRequest struct {
	Prompt      string `json:"prompt"`
	APIKey      string `json:"apiKey"`
	Provider    string `json:"provider"`
	CurrentCode string `json:"currentCode"`
}
