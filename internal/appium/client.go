package appium

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultTimeout = 120 * time.Second

var (
	_ Connector = (*Client)(nil)
	_ Driver    = (*Session)(nil)
)

// Client talks to an Appium server. It is safe for concurrent use.
type Client struct {
	http *resty.Client
}

// NewClient creates a client for the Appium server at baseURL.
// If timeout is 0, uses 120s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = defaultTimeout
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "mcp-device/1.0")

	return &Client{http: rc}
}

// Status reports whether the Appium server is up.
func (c *Client) Status(ctx context.Context) (*StatusInfo, error) {
	body, err := c.do(ctx, http.MethodGet, "/status", nil)
	if err != nil {
		return nil, err
	}

	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse status response: %w", err)
	}
	return &resp.Value, nil
}

// Connect creates a new session with caps as the alwaysMatch set.
func (c *Client) Connect(ctx context.Context, caps Capabilities) (Driver, error) {
	req := map[string]any{
		"capabilities": map[string]any{
			"alwaysMatch": caps,
			"firstMatch":  []map[string]any{{}},
		},
	}

	body, err := c.do(ctx, http.MethodPost, "/session", req)
	if err != nil {
		return nil, err
	}

	var resp sessionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse session response: %w", err)
	}

	id := resp.Value.SessionID
	if id == "" {
		id = resp.SessionID
	}
	if id == "" {
		return nil, fmt.Errorf("appium returned no session id")
	}

	return &Session{client: c, id: id, caps: resp.Value.Capabilities}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.IsError() {
		apiErr := &Error{Status: resp.StatusCode()}
		var errResp errorResponse
		if json.Unmarshal(resp.Body(), &errResp) == nil && (errResp.Value.Error != "" || errResp.Value.Message != "") {
			apiErr.Code = errResp.Value.Error
			apiErr.Message = errResp.Value.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(resp.Body()))
		}
		return nil, apiErr
	}

	return resp.Body(), nil
}

// Session is a live Appium session.
type Session struct {
	client *Client
	id     string
	caps   map[string]any
}

func (s *Session) SessionID() string { return s.id }

func (s *Session) Capabilities() map[string]any { return s.caps }

func (s *Session) path(format string, args ...any) string {
	return "/session/" + s.id + fmt.Sprintf(format, args...)
}

// FindElement returns the element id of the first match.
// using is a W3C/Appium strategy: "accessibility id", "id", "xpath",
// "class name", "-ios predicate string", "-ios class chain",
// "-android uiautomator".
func (s *Session) FindElement(ctx context.Context, using, value string) (string, error) {
	body, err := s.client.do(ctx, http.MethodPost, s.path("/element"), map[string]string{
		"using": using,
		"value": value,
	})
	if err != nil {
		return "", err
	}

	var resp elementResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse element response: %w", err)
	}

	for _, key := range []string{elementKey, "ELEMENT"} {
		if id, _ := resp.Value[key].(string); id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("element response carried no element id")
}

func (s *Session) Click(ctx context.Context, elementID string) error {
	_, err := s.client.do(ctx, http.MethodPost, s.path("/element/%s/click", elementID), map[string]any{})
	return err
}

func (s *Session) SendKeys(ctx context.Context, elementID, text string) error {
	chars := make([]string, 0, len(text))
	for _, r := range text {
		chars = append(chars, string(r))
	}

	_, err := s.client.do(ctx, http.MethodPost, s.path("/element/%s/value", elementID), map[string]any{
		"text":  text,
		"value": chars,
	})
	return err
}

// Tap presses and releases a single touch pointer at a point.
func (s *Session) Tap(ctx context.Context, at Point) error {
	return s.perform(ctx, []map[string]any{
		{"type": "pointerMove", "duration": 0, "x": at.X, "y": at.Y, "origin": "viewport"},
		{"type": "pointerDown", "button": 0},
		{"type": "pause", "duration": 100},
		{"type": "pointerUp", "button": 0},
	})
}

// Swipe drags a single touch pointer from one point to another.
func (s *Session) Swipe(ctx context.Context, from, to Point, duration time.Duration) error {
	return s.perform(ctx, []map[string]any{
		{"type": "pointerMove", "duration": 0, "x": from.X, "y": from.Y, "origin": "viewport"},
		{"type": "pointerDown", "button": 0},
		{"type": "pointerMove", "duration": duration.Milliseconds(), "x": to.X, "y": to.Y, "origin": "viewport"},
		{"type": "pointerUp", "button": 0},
	})
}

func (s *Session) perform(ctx context.Context, actions []map[string]any) error {
	seq := actionSequence{
		Type:       "pointer",
		ID:         "finger1",
		Parameters: map[string]string{"pointerType": "touch"},
		Actions:    actions,
	}

	_, err := s.client.do(ctx, http.MethodPost, s.path("/actions"), map[string]any{
		"actions": []actionSequence{seq},
	})
	return err
}

// Source returns the UI hierarchy as XML.
func (s *Session) Source(ctx context.Context) (string, error) {
	body, err := s.client.do(ctx, http.MethodGet, s.path("/source"), nil)
	if err != nil {
		return "", err
	}

	var resp stringResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse source response: %w", err)
	}
	return resp.Value, nil
}

// Screenshot returns the decoded PNG bytes of the current screen.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	body, err := s.client.do(ctx, http.MethodGet, s.path("/screenshot"), nil)
	if err != nil {
		return nil, err
	}

	var resp stringResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse screenshot response: %w", err)
	}
	if resp.Value == "" {
		return nil, fmt.Errorf("no screenshot data returned")
	}

	png, err := base64.StdEncoding.DecodeString(resp.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot: %w", err)
	}
	return png, nil
}

// Close deletes the session on the server.
func (s *Session) Close(ctx context.Context) error {
	_, err := s.client.do(ctx, http.MethodDelete, s.path(""), nil)
	return err
}
