package models

// Settings is the per-request configuration passed into the chat core.
// Zero values mean "use the configured defaults".
type Settings struct {
	// Model selects the completion model, e.g. "claude-sonnet-4-20250514"
	// or "gemini-2.0-flash". Empty selects the configured default.
	Model string `json:"model,omitempty"`

	// SystemPrompt replaces the base persona instruction when non-empty.
	// The retrieval rules and context block are appended regardless.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// ActiveDocuments restricts retrieval to the named sources.
	// Empty means search everything.
	ActiveDocuments []string `json:"active_documents,omitempty"`
}
