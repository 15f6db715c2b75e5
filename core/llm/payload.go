package llm

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Params are the fixed sampling knobs applied to every generation request.
type Params struct {
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
}

func DefaultParams() Params {
	return Params{
		Temperature:     0.7,
		TopP:            0.95,
		TopK:            40,
		MaxOutputTokens: 1024,
	}
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
	SafetySettings   []safetySetting  `json:"safetySettings"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64         `json:"temperature"`
	TopP            float64         `json:"topP"`
	TopK            int             `json:"topK"`
	MaxOutputTokens int             `json:"maxOutputTokens"`
	ThinkingConfig  *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type thinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// The portfolio assistant answers questions about one person; content
// filtering is handled upstream by the prompt, so all categories are relaxed.
var relaxedSafety = []safetySetting{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_NONE"},
}

func buildPayload(model, prompt string, params Params) generateRequest {
	req := generateRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: prompt}}},
		},
		GenerationConfig: generationConfig{
			Temperature:     params.Temperature,
			TopP:            params.TopP,
			TopK:            params.TopK,
			MaxOutputTokens: params.MaxOutputTokens,
		},
		SafetySettings: relaxedSafety,
	}

	if supportsThinking(model) {
		// Thinking-capable generations default to spending tokens on
		// reasoning; a zero budget keeps webhook latency down.
		req.GenerationConfig.ThinkingConfig = &thinkingConfig{ThinkingBudget: 0}
	}

	return req
}

// supportsThinking reports whether the model id carries a version marker of
// 2 or higher, e.g. "gemini-2.5-flash".
func supportsThinking(model string) bool {
	rest, ok := strings.CutPrefix(model, "gemini-")
	if !ok {
		return false
	}
	major, _, _ := strings.Cut(rest, ".")
	if i := strings.IndexByte(major, '-'); i >= 0 {
		major = major[:i]
	}
	n, err := strconv.Atoi(major)
	if err != nil {
		return false
	}
	return n >= 2
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content content `json:"content"`
}

// extractAnswer pulls the first candidate's first text part out of a 200
// response body. A body without that structure (filtered content, empty
// candidates) is ErrNoCandidate, not a success.
func extractAnswer(body []byte) (string, error) {
	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", ErrNoCandidate
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrNoCandidate
	}
	text := resp.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return "", ErrNoCandidate
	}
	return text, nil
}
