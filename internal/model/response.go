package model

import "time"

type SessionResponse struct {
	SessionID    string    `json:"session_id"`
	Title        string    `json:"title"`
	ProjectID    string    `json:"project_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	VersionCount int       `json:"version_count"`
	Cursor       int       `json:"cursor"`
	Dirty        bool      `json:"dirty"`
	Generating   bool      `json:"generating"`
}

type VersionInfo struct {
	Index              int       `json:"index"`
	Number             int       `json:"number"`
	SourcePrompt       string    `json:"source_prompt"`
	CreatedFromVersion *int      `json:"created_from_version,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	Size               int       `json:"size"`
	Current            bool      `json:"current"`
}

type SessionStateResponse struct {
	SessionResponse
	Versions []VersionInfo     `json:"versions"`
	Turns    []ConversationTurn `json:"messages"`
	Document *Document          `json:"document,omitempty"`
}

// PreviewEvent is pushed while a generation streams.
type PreviewEvent struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
	RawBytes  int    `json:"raw_bytes"`
	Timestamp int64  `json:"timestamp"`
}

type GenerationResult struct {
	SessionID string           `json:"session_id"`
	Index     int              `json:"index"`
	Version   int              `json:"version"`
	Document  Document         `json:"document"`
	Turn      ConversationTurn `json:"message"`
}

type GenerationFailure struct {
	SessionID string            `json:"session_id"`
	Kind      ErrorKind         `json:"kind"`
	Error     string            `json:"error"`
	Turn      *ConversationTurn `json:"message,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

type SettingsResponse struct {
	Provider       string          `json:"provider"`
	BackendURL     string          `json:"backend_url"`
	HasBackendKey  bool            `json:"has_backend_key"`
	Theme          string          `json:"theme"`
	Credentials    map[string]bool `json:"credentials"`
	Providers      []string        `json:"providers"`
	SettingsLoaded bool            `json:"settings_loaded"`
}
