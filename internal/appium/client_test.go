package appium

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	Method string
	Path   string
	Body   map[string]any
}

// fakeAppium serves canned W3C responses and records every request.
type fakeAppium struct {
	mu       sync.Mutex
	requests []recorded
	routes   map[string]func(w http.ResponseWriter)
}

func newFakeAppium(t *testing.T) (*fakeAppium, *Client) {
	t.Helper()

	f := &fakeAppium{routes: map[string]func(w http.ResponseWriter){}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)

		f.mu.Lock()
		f.requests = append(f.requests, recorded{Method: r.Method, Path: r.URL.Path, Body: body})
		route := f.routes[r.Method+" "+r.URL.Path]
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if route == nil {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"value":{"error":"unknown command","message":"no route"}}`))
			return
		}
		route(w)
	}))
	t.Cleanup(srv.Close)

	return f, NewClient(srv.URL, 5*time.Second)
}

func (f *fakeAppium) on(method, path string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = func(w http.ResponseWriter) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func (f *fakeAppium) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func TestConnectSendsAlwaysMatch(t *testing.T) {
	f, c := newFakeAppium(t)
	f.on("POST", "/session", 200, `{"value":{"sessionId":"abc","capabilities":{"platformName":"iOS"}}}`)

	d, err := c.Connect(context.Background(), Capabilities{
		"platformName":          "iOS",
		"appium:automationName": "XCUITest",
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", d.SessionID())
	assert.Equal(t, "iOS", d.Capabilities()["platformName"])

	req := f.last()
	caps := req.Body["capabilities"].(map[string]any)
	always := caps["alwaysMatch"].(map[string]any)
	assert.Equal(t, "XCUITest", always["appium:automationName"])
}

func TestConnectLegacySessionID(t *testing.T) {
	f, c := newFakeAppium(t)
	f.on("POST", "/session", 200, `{"sessionId":"legacy","value":{}}`)

	d, err := c.Connect(context.Background(), Capabilities{})
	require.NoError(t, err)
	assert.Equal(t, "legacy", d.SessionID())
}

func TestConnectRejected(t *testing.T) {
	f, c := newFakeAppium(t)
	f.on("POST", "/session", 500, `{"value":{"error":"session not created","message":"Could not find a connected Android device"}}`)

	_, err := c.Connect(context.Background(), Capabilities{})
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "session not created", apiErr.Code)
	assert.Contains(t, err.Error(), "Could not find a connected Android device")
}

func TestConnectUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second)
	_, err := c.Connect(context.Background(), Capabilities{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}

func TestFindElementAndNoSuchElement(t *testing.T) {
	f, c := newFakeAppium(t)
	f.on("POST", "/session", 200, `{"value":{"sessionId":"s1"}}`)
	f.on("POST", "/session/s1/element", 200, `{"value":{"element-6066-11e4-a52e-4f735466cecf":"el-1","ELEMENT":"el-1"}}`)

	d, err := c.Connect(context.Background(), Capabilities{})
	require.NoError(t, err)

	id, err := d.FindElement(context.Background(), "accessibility id", "Login")
	require.NoError(t, err)
	assert.Equal(t, "el-1", id)
	assert.Equal(t, "accessibility id", f.last().Body["using"])
	assert.Equal(t, "Login", f.last().Body["value"])

	f.on("POST", "/session/s1/element", 404, `{"value":{"error":"no such element","message":"An element could not be located"}}`)
	_, err = d.FindElement(context.Background(), "id", "missing")
	assert.ErrorIs(t, err, ErrNoSuchElement)
}

func TestSwipePostsPointerActions(t *testing.T) {
	f, c := newFakeAppium(t)
	f.on("POST", "/session", 200, `{"value":{"sessionId":"s1"}}`)
	f.on("POST", "/session/s1/actions", 200, `{"value":null}`)

	d, err := c.Connect(context.Background(), Capabilities{})
	require.NoError(t, err)

	err = d.Swipe(context.Background(), Point{X: 100, Y: 600}, Point{X: 100, Y: 200}, 300*time.Millisecond)
	require.NoError(t, err)

	seqs := f.last().Body["actions"].([]any)
	require.Len(t, seqs, 1)
	seq := seqs[0].(map[string]any)
	assert.Equal(t, "pointer", seq["type"])
	actions := seq["actions"].([]any)
	require.Len(t, actions, 4)
	move := actions[2].(map[string]any)
	assert.Equal(t, float64(300), move["duration"])
	assert.Equal(t, float64(200), move["y"])
}

func TestScreenshotDecodes(t *testing.T) {
	f, c := newFakeAppium(t)
	png := []byte("\x89PNG fake")
	f.on("POST", "/session", 200, `{"value":{"sessionId":"s1"}}`)
	f.on("GET", "/session/s1/screenshot", 200, `{"value":"`+base64.StdEncoding.EncodeToString(png)+`"}`)

	d, err := c.Connect(context.Background(), Capabilities{})
	require.NoError(t, err)

	got, err := d.Screenshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, png, got)
}

func TestSourceAndClose(t *testing.T) {
	f, c := newFakeAppium(t)
	f.on("POST", "/session", 200, `{"value":{"sessionId":"s1"}}`)
	f.on("GET", "/session/s1/source", 200, `{"value":"<hierarchy/>"}`)
	f.on("DELETE", "/session/s1", 200, `{"value":null}`)

	d, err := c.Connect(context.Background(), Capabilities{})
	require.NoError(t, err)

	src, err := d.Source(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<hierarchy/>", src)

	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, "DELETE", f.last().Method)
}

func TestStatus(t *testing.T) {
	f, c := newFakeAppium(t)
	f.on("GET", "/status", 200, `{"value":{"ready":true,"message":"The server is ready","build":{"version":"2.11.0"}}}`)

	st, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Ready)
	assert.Equal(t, "2.11.0", st.Build.Version)
}
