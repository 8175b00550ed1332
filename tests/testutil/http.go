package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Envelope is the decoded API response envelope.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code      string `json:"code"`
		Reason    string `json:"reason"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	} `json:"error"`
	Meta *struct {
		Total      int64 `json:"total"`
		Page       int   `json:"page"`
		PageSize   int   `json:"page_size"`
		TotalPages int   `json:"total_pages"`
	} `json:"meta"`
}

// APIClient drives a gin engine in-process.
type APIClient struct {
	Engine *gin.Engine
	Token  string
}

// NewAPIClient creates a client sending token as the bearer credential.
// An empty token sends no Authorization header.
func NewAPIClient(engine *gin.Engine, token string) *APIClient {
	return &APIClient{Engine: engine, Token: token}
}

// As returns a copy of the client using token.
func (c *APIClient) As(token string) *APIClient {
	return &APIClient{Engine: c.Engine, Token: token}
}

// Do sends a request with body marshalled as JSON when non-nil.
func (c *APIClient) Do(t *testing.T, method, path string, body interface{}, headers ...map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		r = ToJSONReader(t, body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	for _, h := range headers {
		for k, v := range h {
			req.Header.Set(k, v)
		}
	}

	w := httptest.NewRecorder()
	c.Engine.ServeHTTP(w, req)
	return w
}

// DoRaw sends body verbatim, for requests whose exact bytes matter.
func (c *APIClient) DoRaw(t *testing.T, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	c.Engine.ServeHTTP(w, req)
	return w
}

// DecodeEnvelope parses the response envelope.
func DecodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "Failed to parse response: %s", w.Body.String())
	return env
}

// RequireSuccess asserts status and a successful envelope, decoding data
// into out when non-nil.
func RequireSuccess(t *testing.T, w *httptest.ResponseRecorder, status int, out interface{}) Envelope {
	t.Helper()

	require.Equal(t, status, w.Code, "Unexpected status code: %s", w.Body.String())
	env := DecodeEnvelope(t, w)
	require.True(t, env.Success, "Expected success to be true")
	assert.Nil(t, env.Error, "Expected no error")
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out), "Failed to decode data")
	}
	return env
}

// AssertErrorResponse asserts status and the error code of the envelope.
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, status int, code string) Envelope {
	t.Helper()

	assert.Equal(t, status, w.Code, "Unexpected status code: %s", w.Body.String())
	env := DecodeEnvelope(t, w)
	assert.False(t, env.Success, "Expected success to be false")
	if assert.NotNil(t, env.Error, "Expected error object in response") {
		assert.Equal(t, code, env.Error.Code, "Unexpected error code")
	}
	return env
}

// ToJSONReader converts a value to a JSON io.Reader.
func ToJSONReader(t *testing.T, v interface{}) io.Reader {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err, "Failed to marshal to JSON")
	return bytes.NewReader(data)
}
