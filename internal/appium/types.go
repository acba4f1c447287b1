// Package appium is a client for the Appium W3C WebDriver REST API.
package appium

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Capabilities is the alwaysMatch capability set sent on session creation.
type Capabilities map[string]any

// Point is a screen coordinate in device points.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Driver is a connected automation session.
type Driver interface {
	SessionID() string
	Capabilities() map[string]any
	FindElement(ctx context.Context, using, value string) (string, error)
	Click(ctx context.Context, elementID string) error
	SendKeys(ctx context.Context, elementID, text string) error
	Tap(ctx context.Context, at Point) error
	Swipe(ctx context.Context, from, to Point, duration time.Duration) error
	Source(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close(ctx context.Context) error
}

// Connector opens automation sessions.
type Connector interface {
	Connect(ctx context.Context, caps Capabilities) (Driver, error)
}

// W3C element reference key.
const elementKey = "element-6066-11e4-a52e-4f735466cecf"

var (
	ErrNoSuchElement = errors.New("no such element")
	ErrNoSuchSession = errors.New("invalid session id")
)

// Error is a W3C error payload returned by Appium.
type Error struct {
	Status  int
	Code    string // W3C error code, e.g. "no such element"
	Message string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("appium request failed with status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("appium error %s: %s", e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNoSuchElement:
		return e.Code == "no such element"
	case ErrNoSuchSession:
		return e.Code == "invalid session id"
	}
	return false
}

type errorResponse struct {
	Value struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	} `json:"value"`
}

type sessionResponse struct {
	Value struct {
		SessionID    string         `json:"sessionId"`
		Capabilities map[string]any `json:"capabilities"`
	} `json:"value"`
	// Pre-W3C servers put the id at the top level.
	SessionID string `json:"sessionId"`
}

type elementResponse struct {
	Value map[string]any `json:"value"`
}

type stringResponse struct {
	Value string `json:"value"`
}

// StatusInfo is the payload of GET /status.
type StatusInfo struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message"`
	Build   struct {
		Version string `json:"version"`
	} `json:"build"`
}

type statusResponse struct {
	Value StatusInfo `json:"value"`
}

type actionSequence struct {
	Type       string            `json:"type"`
	ID         string            `json:"id"`
	Parameters map[string]string `json:"parameters"`
	Actions    []map[string]any  `json:"actions"`
}
