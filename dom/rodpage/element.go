package rodpage

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/promptnav/dom"
)

// Element is a dom.Element over a rod remote object.
type Element struct {
	el  *rod.Element
	key string
}

func newElement(ctx context.Context, el *rod.Element) (*Element, error) {
	res, err := el.Context(ctx).Eval(`() => window.__promptnav.key(this)`)
	if err != nil {
		return nil, mapErr("key", err)
	}
	return &Element{el: el, key: res.Value.Str()}, nil
}

// Key implements dom.Element. It is stable for the node's lifetime in the
// current document.
func (e *Element) Key() string { return e.key }

// eval runs js with this bound to the element. Scripts return null for a
// node that is no longer connected.
func (e *Element) eval(ctx context.Context, op, js string, params ...any) (*proto.RuntimeRemoteObject, error) {
	res, err := e.el.Context(ctx).Eval(js, params...)
	if err != nil {
		return nil, mapErr(op, err)
	}
	if res.Value.Nil() {
		return nil, dom.ErrDetached
	}
	return res, nil
}

// mapErr turns CDP "object gone" failures into dom.ErrDetached.
func mapErr(op string, err error) error {
	if isGone(err.Error()) {
		return dom.ErrDetached
	}
	return fmt.Errorf("rodpage: %s: %w", op, err)
}

func isGone(msg string) bool {
	return strings.Contains(msg, "Could not find") ||
		strings.Contains(msg, "Cannot find context") ||
		strings.Contains(msg, "No node with given id")
}

// Text implements dom.Element with the rendered innerText.
func (e *Element) Text(ctx context.Context) (string, error) {
	res, err := e.eval(ctx, "text", `() => this.isConnected ? this.innerText : null`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// ImageCount implements dom.Element.
func (e *Element) ImageCount(ctx context.Context) (int, error) {
	res, err := e.eval(ctx, "images", `() => this.isConnected ? this.querySelectorAll('img').length : null`)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

// Rect implements dom.Element with getBoundingClientRect.
func (e *Element) Rect(ctx context.Context) (dom.Rect, error) {
	res, err := e.eval(ctx, "rect", `() => {
		if (!this.isConnected) return null;
		const r = this.getBoundingClientRect();
		return { top: r.top, left: r.left, width: r.width, height: r.height };
	}`)
	if err != nil {
		return dom.Rect{}, err
	}
	var r dom.Rect
	if err := res.Value.Unmarshal(&r); err != nil {
		return dom.Rect{}, fmt.Errorf("rodpage: rect: %w", err)
	}
	return r, nil
}

// ScrollIntoView implements dom.Element with a smooth, centred scroll.
func (e *Element) ScrollIntoView(ctx context.Context) error {
	_, err := e.eval(ctx, "scroll", `() => {
		if (!this.isConnected) return null;
		this.scrollIntoView({ behavior: 'smooth', block: 'center' });
		return true;
	}`)
	return err
}

// Style implements dom.Element over the inline style declaration.
func (e *Element) Style(ctx context.Context, props ...string) (map[string]string, error) {
	res, err := e.eval(ctx, "style", `(props) => {
		if (!this.isConnected) return null;
		const out = {};
		for (const p of props) out[p] = this.style.getPropertyValue(p);
		return out;
	}`, props)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(props))
	if err := res.Value.Unmarshal(&out); err != nil {
		return nil, fmt.Errorf("rodpage: style: %w", err)
	}
	return out, nil
}

// SetStyle implements dom.Element. Empty values remove the property.
func (e *Element) SetStyle(ctx context.Context, values map[string]string) error {
	_, err := e.eval(ctx, "set style", `(values) => {
		if (!this.isConnected) return null;
		for (const [k, v] of Object.entries(values)) {
			if (v === '') this.style.removeProperty(k);
			else this.style.setProperty(k, v);
		}
		return true;
	}`, values)
	return err
}
