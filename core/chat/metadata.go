package chat

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/adalundhe/relay/core/locale"
)

// Metadata carries the rate-limiting and analytics fields that ride along
// with a chat request. Form fields win over transport headers so the widget
// can report the identifiers it knows.
type Metadata struct {
	UserID    string
	DeviceID  string
	UserAgent string
	Referrer  string
	IP        string
	Language  locale.Lang
}

// CallerID returns the best available caller identifier for fingerprinting.
func (m Metadata) CallerID() string {
	if m.UserID != "" {
		return m.UserID
	}
	if m.DeviceID != "" {
		return m.DeviceID
	}
	return m.IP
}

// ExtractMetadata pulls metadata from the form body when present, falling
// back to request headers. Never fails; absent fields stay empty.
func ExtractMetadata(body []byte, r *http.Request) Metadata {
	m := Metadata{Language: locale.English}

	if values, err := url.ParseQuery(string(body)); err == nil && isForm(values) {
		m.UserID = values.Get("userId")
		m.DeviceID = values.Get("deviceId")
		m.UserAgent = values.Get("userAgent")
		m.Referrer = values.Get("referrer")
		m.IP = values.Get("userIP")
		m.Language = locale.Normalize(values.Get("language"))
	} else if lang := peekJSONLanguage(body); lang != "" {
		m.Language = locale.Normalize(lang)
	}

	if m.UserAgent == "" {
		m.UserAgent = r.UserAgent()
	}
	if m.Referrer == "" {
		m.Referrer = r.Referer()
	}
	if m.IP == "" {
		m.IP = clientIP(r)
	}

	return m
}

// EventType returns the analytics event name carried by a non-chat body
// (e.g. "page_view"), or empty when the body is a chat request.
func EventType(body []byte) string {
	if values, err := url.ParseQuery(string(body)); err == nil && isForm(values) {
		if values.Has("question") {
			return ""
		}
		return values.Get("event")
	}

	var parsed struct {
		Question string `json:"question"`
		Event    string `json:"event"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if parsed.Question != "" {
		return ""
	}
	return parsed.Event
}

// isForm reports whether parsed query values look like the widget's form
// encoding rather than an accidental parse of a JSON body.
func isForm(values url.Values) bool {
	return values.Has("question") || values.Has("event") || values.Has("userId") || values.Has("deviceId")
}

func peekJSONLanguage(body []byte) string {
	req, err := parseJSON(body)
	if err != nil {
		return ""
	}
	return string(req.Language)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}
