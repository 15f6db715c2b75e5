// Package chat parses inbound webhook bodies into normalized chat requests.
package chat

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/adalundhe/relay/core/locale"
)

var (
	ErrNoData        = errors.New("no request data")
	ErrEmptyQuestion = errors.New("empty question")
	ErrInvalidJSON   = errors.New("invalid json body")
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one prior turn of the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a validated, normalized inbound question.
type ChatRequest struct {
	Question string
	Language locale.Lang
	History  []Message
}

type jsonBody struct {
	Question string          `json:"question"`
	Language string          `json:"language"`
	History  json.RawMessage `json:"history"`
}

// Parse extracts a ChatRequest from either a form-encoded or a JSON body.
// Form fields are tried first, then JSON. History is best-effort: a
// malformed history field is dropped rather than failing the request.
// Parsing is pure; the same body always yields the same request.
func Parse(body []byte) (*ChatRequest, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, ErrNoData
	}

	if req, ok := parseForm(body); ok {
		return validate(req)
	}

	req, err := parseJSON(body)
	if err != nil {
		return nil, err
	}
	return validate(req)
}

func validate(req *ChatRequest) (*ChatRequest, error) {
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return nil, ErrEmptyQuestion
	}
	return req, nil
}

func parseForm(body []byte) (*ChatRequest, bool) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, false
	}
	if !values.Has("question") {
		return nil, false
	}
	return &ChatRequest{
		Question: values.Get("question"),
		Language: locale.Normalize(values.Get("language")),
		History:  parseHistory([]byte(values.Get("history"))),
	}, true
}

func parseJSON(body []byte) (*ChatRequest, error) {
	var parsed jsonBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, ErrInvalidJSON
	}
	return &ChatRequest{
		Question: parsed.Question,
		Language: locale.Normalize(parsed.Language),
		History:  parseHistory(parsed.History),
	}, nil
}

// parseHistory accepts either a JSON array of messages or a JSON string
// containing one (the form encoding). Anything malformed yields an empty
// history.
func parseHistory(raw []byte) []Message {
	if len(raw) == 0 {
		return nil
	}

	var msgs []Message
	if err := json.Unmarshal(raw, &msgs); err == nil {
		return normalizeHistory(msgs)
	}

	var nested string
	if err := json.Unmarshal(raw, &nested); err == nil {
		if err := json.Unmarshal([]byte(nested), &msgs); err == nil {
			return normalizeHistory(msgs)
		}
	}

	return nil
}

func normalizeHistory(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Content == "" {
			continue
		}
		if m.Role != RoleAssistant {
			m.Role = RoleUser
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
