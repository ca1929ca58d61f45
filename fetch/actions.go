package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/webpeel/webpeel/models"
)

// actionTimeout is the per-action deadline.
const actionTimeout = 10 * time.Second

// executeActions runs the ordered action list on the page. A failing action
// aborts the rest and reports which step failed.
func executeActions(ctx context.Context, page *rod.Page, actions []models.Action) error {
	for i, action := range actions {
		if err := executeSingleAction(ctx, page, action); err != nil {
			return models.NewPeelError(
				models.KindInvalidRequest,
				fmt.Sprintf("action %d (%s) failed after %d completed: %v", i, action.Type, i, err),
				err,
			)
		}
	}
	return nil
}

// executeSingleAction dispatches one action with its own timeout.
func executeSingleAction(ctx context.Context, page *rod.Page, action models.Action) error {
	actionCtx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	p := page.Context(actionCtx)

	switch action.Type {
	case "wait":
		return execWait(p, action)
	case "waitForSelector":
		if action.Selector == "" {
			return fmt.Errorf("waitForSelector action requires a selector")
		}
		return p.WaitElementsMoreThan(action.Selector, 0)
	case "click":
		el, err := element(p, action)
		if err != nil {
			return err
		}
		return el.Click(proto.InputMouseButtonLeft, 1)
	case "hover":
		el, err := element(p, action)
		if err != nil {
			return err
		}
		return el.Hover()
	case "type":
		el, err := element(p, action)
		if err != nil {
			return err
		}
		return el.Input(action.Text)
	case "fill":
		el, err := element(p, action)
		if err != nil {
			return err
		}
		if err := el.SelectAllText(); err != nil {
			return err
		}
		return el.Input(action.Text)
	case "select":
		el, err := element(p, action)
		if err != nil {
			return err
		}
		return el.Select([]string{action.Value}, true, rod.SelectorTypeText)
	case "press":
		if action.Key == "" {
			return fmt.Errorf("press action requires a key")
		}
		return pressKey(p, action.Key)
	case "scroll":
		return execScroll(p, action)
	case "screenshot":
		// Marker action: the fetcher captures the screenshot after all
		// actions complete, so here we only validate ordering.
		return nil
	default:
		return fmt.Errorf("unknown action type: %s", action.Type)
	}
}

// element resolves the action's selector, failing fast when missing.
func element(p *rod.Page, action models.Action) (*rod.Element, error) {
	if action.Selector == "" {
		return nil, fmt.Errorf("%s action requires a selector", action.Type)
	}
	el, err := p.Element(action.Selector)
	if err != nil {
		return nil, fmt.Errorf("element %q not found: %w", action.Selector, err)
	}
	return el, nil
}

// execWait sleeps for the requested duration, or waits for a selector when
// one is given.
func execWait(p *rod.Page, action models.Action) error {
	if action.Selector != "" {
		return p.WaitElementsMoreThan(action.Selector, 0)
	}
	if action.Milliseconds > 0 {
		select {
		case <-time.After(time.Duration(action.Milliseconds) * time.Millisecond):
			return nil
		case <-p.GetContext().Done():
			return p.GetContext().Err()
		}
	}
	return nil
}

// execScroll scrolls by whole viewports with a brief pause between steps so
// lazy-loaded content can trigger.
func execScroll(p *rod.Page, action models.Action) error {
	amount := action.Amount
	if amount <= 0 {
		amount = 1
	}

	res, err := p.Eval(`() => window.innerHeight`)
	if err != nil {
		return fmt.Errorf("failed to get viewport height: %w", err)
	}
	viewportHeight := res.Value.Int()

	for i := 0; i < amount; i++ {
		delta := viewportHeight
		if action.Direction == "up" {
			delta = -viewportHeight
		}
		if err := p.Mouse.Scroll(0, float64(delta), 0); err != nil {
			return fmt.Errorf("scroll step %d failed: %w", i, err)
		}
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}

// pressKey maps a small set of named keys onto keyboard input.
func pressKey(p *rod.Page, key string) error {
	named := map[string]input.Key{
		"Enter":      input.Enter,
		"Tab":        input.Tab,
		"Escape":     input.Escape,
		"Backspace":  input.Backspace,
		"ArrowDown":  input.ArrowDown,
		"ArrowUp":    input.ArrowUp,
		"ArrowLeft":  input.ArrowLeft,
		"ArrowRight": input.ArrowRight,
	}
	if k, ok := named[key]; ok {
		return p.Keyboard.Press(k)
	}
	if len(key) == 1 {
		return p.Keyboard.Press(input.Key(key[0]))
	}
	return fmt.Errorf("unsupported key: %s", key)
}
