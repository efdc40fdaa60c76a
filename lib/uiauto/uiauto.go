// Package uiauto is a minimal WebDriver/Appium client covering the handful
// of endpoints the booking crawler drives: session lifecycle, page source,
// element lookup/click, back navigation, gestures and settings. It speaks
// the plain W3C wire protocol over HTTP.
package uiauto

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"wordsynk-backend/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("wordsynk.lib.uiauto")

// W3C locator strategies understood by the UiAutomator2 driver.
const (
	ByXPath        = "xpath"
	ByClassName    = "class name"
	ByUiAutomator  = "-android uiautomator"
	ByAccessbility = "accessibility id"
)

const elementKey = "element-6066-11e4-a52e-4f735466cecf"

type Options struct {
	ServerURL string
	// Capabilities is merged into alwaysMatch; appium-prefixed keys are the
	// caller's responsibility.
	Capabilities map[string]any
}

type Session struct {
	http *resty.Client
	id   string
}

type wireError struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Stacktrace string `json:"stacktrace"`
}

type wireValue struct {
	Value json.RawMessage `json:"value"`
}

func (s *Session) call(ctx context.Context, method, path string, body any, out any) error {
	req := s.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	res, err := req.Execute(method, path)
	if err != nil {
		return err
	}

	var envelope wireValue
	if err := json.Unmarshal(res.Body(), &envelope); err != nil {
		return fmt.Errorf("malformed webdriver response: %w", err)
	}
	if res.IsError() {
		var werr wireError
		if json.Unmarshal(envelope.Value, &werr) == nil && werr.Error != "" {
			return fmt.Errorf("webdriver %s: %s", werr.Error, werr.Message)
		}
		return fmt.Errorf("webdriver http %d on %s %s", res.StatusCode(), method, path)
	}
	if out != nil && len(envelope.Value) > 0 {
		return json.Unmarshal(envelope.Value, out)
	}
	return nil
}

// NewSession creates a fresh automation session against an already running
// driver server. The target app is assumed to be installed and logged in.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	ctx, span := tracer.Start(ctx, "NewSession")
	defer span.End()

	client := resty.New().SetBaseURL(opts.ServerURL)
	telemetry.InstrumentResty(client, "wordsynk.lib.uiauto.http")
	s := &Session{http: client}

	var created struct {
		SessionId string `json:"sessionId"`
	}
	err := s.call(ctx, "POST", "/session", map[string]any{
		"capabilities": map[string]any{
			"alwaysMatch": opts.Capabilities,
		},
	}, &created)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create session")
		return nil, err
	}
	if created.SessionId == "" {
		err := fmt.Errorf("driver returned an empty session id")
		span.RecordError(err)
		return nil, err
	}

	s.id = created.SessionId
	slog.InfoContext(ctx, "automation session started", "session", s.id)
	return s, nil
}

func (s *Session) path(suffix string) string {
	return fmt.Sprintf("/session/%s%s", s.id, suffix)
}

func (s *Session) Quit(ctx context.Context) error {
	return s.call(ctx, "DELETE", s.path(""), nil, nil)
}

// PageSource returns the current accessibility-tree dump as markup.
func (s *Session) PageSource(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "PageSource")
	defer span.End()

	var source string
	err := s.call(ctx, "GET", s.path("/source"), nil, &source)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get page source")
		return "", err
	}
	span.SetAttributes(attribute.Int("length", len(source)))
	return source, nil
}

type Element struct {
	session *Session
	id      string
}

func (s *Session) FindElement(ctx context.Context, strategy, selector string) (Element, error) {
	var ref map[string]string
	err := s.call(ctx, "POST", s.path("/element"), map[string]string{
		"using": strategy,
		"value": selector,
	}, &ref)
	if err != nil {
		return Element{}, err
	}
	id := ref[elementKey]
	if id == "" {
		return Element{}, fmt.Errorf("driver returned no element reference for %q", selector)
	}
	return Element{session: s, id: id}, nil
}

// WaitForElement polls FindElement until it succeeds or the timeout lapses.
// The UiAutomator2 driver has no native wait endpoint, so polling is the
// accepted approach.
func (s *Session) WaitForElement(ctx context.Context, strategy, selector string, timeout time.Duration) (Element, error) {
	ctx, span := tracer.Start(ctx, "WaitForElement")
	defer span.End()
	span.SetAttributes(attribute.String("selector", selector))

	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		el, err := s.FindElement(ctx, strategy, selector)
		if err == nil {
			return el, nil
		}
		lastErr = err

		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return Element{}, ctx.Err()
		case <-time.After(300 * time.Millisecond):
		}
	}
	err := fmt.Errorf("element %q not found within %s: %w", selector, timeout, lastErr)
	span.RecordError(err)
	span.SetStatus(codes.Error, "wait timed out")
	return Element{}, err
}

func (e Element) Click(ctx context.Context) error {
	return e.session.call(ctx, "POST", e.session.path("/element/"+e.id+"/click"), map[string]any{}, nil)
}

type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (e Element) Rect(ctx context.Context) (Rect, error) {
	var r Rect
	err := e.session.call(ctx, "GET", e.session.path("/element/"+e.id+"/rect"), nil, &r)
	return r, err
}

func (e Element) Displayed(ctx context.Context) (bool, error) {
	var displayed bool
	err := e.session.call(ctx, "GET", e.session.path("/element/"+e.id+"/displayed"), nil, &displayed)
	return displayed, err
}

func (s *Session) Back(ctx context.Context) error {
	return s.call(ctx, "POST", s.path("/back"), map[string]any{}, nil)
}

func (s *Session) WindowSize(ctx context.Context) (Rect, error) {
	var r Rect
	err := s.call(ctx, "GET", s.path("/window/rect"), nil, &r)
	return r, err
}

func (s *Session) executeScript(ctx context.Context, script string, args ...any) error {
	if args == nil {
		args = []any{}
	}
	return s.call(ctx, "POST", s.path("/execute/sync"), map[string]any{
		"script": script,
		"args":   args,
	}, nil)
}

// ScrollElement performs a "mobile: scrollGesture" anchored on an element.
func (s *Session) ScrollElement(ctx context.Context, el Element, direction string, percent float64) error {
	return s.executeScript(ctx, "mobile: scrollGesture", map[string]any{
		"elementId": el.id,
		"direction": direction,
		"percent":   percent,
	})
}

// ScrollArea performs a coordinate-based "mobile: scrollGesture".
func (s *Session) ScrollArea(ctx context.Context, area Rect, direction string, percent float64) error {
	return s.executeScript(ctx, "mobile: scrollGesture", map[string]any{
		"left":      area.X,
		"top":       area.Y,
		"width":     area.Width,
		"height":    area.Height,
		"direction": direction,
		"percent":   percent,
	})
}

// Swipe performs a "mobile: swipeGesture" across the given area.
func (s *Session) Swipe(ctx context.Context, area Rect, direction string, percent float64) error {
	return s.executeScript(ctx, "mobile: swipeGesture", map[string]any{
		"left":      area.X,
		"top":       area.Y,
		"width":     area.Width,
		"height":    area.Height,
		"direction": direction,
		"percent":   percent,
	})
}

// UpdateSettings pushes driver settings, e.g. targeting a specific display
// on multi-display emulators.
func (s *Session) UpdateSettings(ctx context.Context, settings map[string]any) error {
	return s.call(ctx, "POST", s.path("/appium/settings"), map[string]any{
		"settings": settings,
	}, nil)
}
