package openrouter

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsRequest struct {
	Messages          []chatMessage `json:"messages"`
	Model             string        `json:"model"`
	Temperature       float64       `json:"temperature"`
	MaxTokens         int           `json:"max_tokens"`
	TopP              float64       `json:"top_p"`
	FrequencyPenalty  float64       `json:"frequency_penalty"`
	PresencePenalty   float64       `json:"presence_penalty"`
	RepetitionPenalty float64       `json:"repetition_penalty"`
}

type chatCompletionsResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
		Index        int         `json:"index"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
