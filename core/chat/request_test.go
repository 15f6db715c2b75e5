package chat

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/relay/core/locale"
)

func TestParse_FormBody(t *testing.T) {
	values := url.Values{}
	values.Set("question", "What projects have you built?")
	values.Set("language", "ru")

	req, err := Parse([]byte(values.Encode()))
	require.NoError(t, err)

	assert.Equal(t, "What projects have you built?", req.Question)
	assert.Equal(t, locale.Russian, req.Language)
	assert.Empty(t, req.History)
}

func TestParse_FormDefaultsToEnglish(t *testing.T) {
	req, err := Parse([]byte("question=Hi"))
	require.NoError(t, err)

	assert.Equal(t, "Hi", req.Question)
	assert.Equal(t, locale.English, req.Language)
}

func TestParse_FormHistoryJSONString(t *testing.T) {
	values := url.Values{}
	values.Set("question", "And after that?")
	values.Set("history", `[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]`)

	req, err := Parse([]byte(values.Encode()))
	require.NoError(t, err)

	require.Len(t, req.History, 2)
	assert.Equal(t, RoleUser, req.History[0].Role)
	assert.Equal(t, RoleAssistant, req.History[1].Role)
	assert.Equal(t, "hello", req.History[1].Content)
}

func TestParse_MalformedHistoryDropped(t *testing.T) {
	values := url.Values{}
	values.Set("question", "Hi")
	values.Set("history", `{not json]`)

	req, err := Parse([]byte(values.Encode()))
	require.NoError(t, err)
	assert.Empty(t, req.History)
}

func TestParse_JSONBody(t *testing.T) {
	body := `{"question":"Tell me about your stack","language":"en","history":[{"role":"user","content":"hi"}]}`

	req, err := Parse([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, "Tell me about your stack", req.Question)
	assert.Equal(t, locale.English, req.Language)
	require.Len(t, req.History, 1)
}

func TestParse_JSONHistoryAsEncodedString(t *testing.T) {
	body := `{"question":"Hi","history":"[{\"role\":\"assistant\",\"content\":\"hello\"}]"}`

	req, err := Parse([]byte(body))
	require.NoError(t, err)

	require.Len(t, req.History, 1)
	assert.Equal(t, RoleAssistant, req.History[0].Role)
}

func TestParse_UnknownLanguageNormalizes(t *testing.T) {
	req, err := Parse([]byte(`{"question":"Hi","language":"de"}`))
	require.NoError(t, err)
	assert.Equal(t, locale.English, req.Language)
}

func TestParse_UnknownHistoryRoleBecomesUser(t *testing.T) {
	body := `{"question":"Hi","history":[{"role":"system","content":"x"}]}`

	req, err := Parse([]byte(body))
	require.NoError(t, err)

	require.Len(t, req.History, 1)
	assert.Equal(t, RoleUser, req.History[0].Role)
}

func TestParse_EmptyQuestion(t *testing.T) {
	for name, body := range map[string]string{
		"form blank":      "question=",
		"form whitespace": "question=%20%20",
		"json missing":    `{"language":"en"}`,
		"json whitespace": `{"question":"   "}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			assert.ErrorIs(t, err, ErrEmptyQuestion)
		})
	}
}

func TestParse_NoData(t *testing.T) {
	for name, body := range map[string]string{
		"empty":      "",
		"whitespace": "   \n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			assert.ErrorIs(t, err, ErrNoData)
		})
	}
}

func TestParse_InvalidJSON(t *testing.T) {
	_, err := Parse([]byte(`{"question": `))
	assert.ErrorIs(t, err, ErrInvalidJSON)
}

func TestParse_Idempotent(t *testing.T) {
	body := []byte(`{"question":"Hi there","language":"ru","history":[{"role":"user","content":"a"}]}`)

	first, err := Parse(body)
	require.NoError(t, err)
	second, err := Parse(body)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
