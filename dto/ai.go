package dto

// CompletionRequest asks the AI provider for a JSON-mode completion.
type CompletionRequest struct {
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	JSONMode    bool    `json:"json_mode,omitempty"`
}

type CompletionResponse struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}

// DocumentExtractionRequest sends a document for vision-based structured
// extraction. MaxPages bounds how many pages the provider renders to images.
type DocumentExtractionRequest struct {
	Prompt      string `json:"prompt"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        string `json:"data"` // base64
	MaxPages    int    `json:"max_pages,omitempty"`
}

type DocumentExtractionResponse struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
	Pages   int    `json:"pages,omitempty"`
}
