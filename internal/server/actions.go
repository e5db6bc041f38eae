package server

import (
	"context"
	"fmt"
	"time"

	"onlytests-e2e/internal/browser"
	"onlytests-e2e/internal/interact"
)

type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

// target reads selector, and the optional text and index, from params.
func target(params map[string]any) (browser.Target, error) {
	sel, _ := params["selector"].(string)
	if sel == "" {
		return browser.Target{}, badRequest("selector parameter is required")
	}
	t := browser.Sel(sel)
	if text, ok := params["text"].(string); ok {
		t = t.WithText(text)
	}
	if idx, ok := params["index"].(float64); ok {
		if idx < 0 {
			return browser.Target{}, badRequest("index must not be negative")
		}
		t = t.Nth(int(idx))
	}
	return t, nil
}

func callOptions(params map[string]any) []interact.CallOption {
	var opts []interact.CallOption
	if n, ok := params["attempts"].(float64); ok && n > 0 {
		opts = append(opts, interact.Attempts(int(n)))
	}
	if ms, ok := params["timeoutMs"].(float64); ok && ms > 0 {
		opts = append(opts, interact.Timeout(time.Duration(ms)*time.Millisecond))
	}
	return opts
}

func stringParam(params map[string]any, name string) (string, error) {
	v, ok := params[name].(string)
	if !ok {
		return "", badRequest("%s parameter is required", name)
	}
	return v, nil
}

// perform runs one action against the tab and returns its result, if any.
func (s *Server) perform(ctx context.Context, req ActionRequest) (any, error) {
	if req.Action == "waitIdle" {
		s.mu.Lock()
		defer s.mu.Unlock()
		return nil, s.ix.WaitForNetworkIdle(ctx, callOptions(req.Params)...)
	}

	t, err := target(req.Params)
	if err != nil {
		if req.Action == "" {
			return nil, badRequest("action is required")
		}
		if !knownAction(req.Action) {
			return nil, badRequest("Unknown action: %s", req.Action)
		}
		return nil, err
	}
	opts := callOptions(req.Params)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.Action {
	case "click":
		return nil, s.ix.SafeClick(ctx, t, opts...)

	case "fill":
		value, err := stringParam(req.Params, "value")
		if err != nil {
			return nil, err
		}
		return nil, s.ix.SafeFill(ctx, t, value, opts...)

	case "select":
		value, err := stringParam(req.Params, "value")
		if err != nil {
			return nil, err
		}
		return nil, s.ix.SafeSelect(ctx, t, value, opts...)

	case "press":
		key, err := stringParam(req.Params, "key")
		if err != nil {
			return nil, err
		}
		return nil, s.ix.SafePress(ctx, t, key, opts...)

	case "wait":
		return nil, s.ix.WaitForElement(ctx, t, opts...)

	case "observe":
		return map[string]string{"visibility": s.ix.ObserveElement(ctx, t, opts...).String()}, nil

	case "getText":
		return s.ix.GetElementText(ctx, t, opts...)

	case "exists":
		return s.ix.ElementExists(ctx, t, opts...), nil

	default:
		return nil, badRequest("Unknown action: %s", req.Action)
	}
}

func knownAction(a string) bool {
	switch a {
	case "click", "fill", "select", "press", "wait", "observe", "getText", "exists", "waitIdle":
		return true
	}
	return false
}
