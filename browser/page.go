package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/aluiziolira/leadscout/extract"
)

// Page is the detail panel of the listing currently open in the tab.
type Page struct {
	nav *Navigator
	url string
}

// Query returns the live nodes matching selector.
func (p *Page) Query(ctx context.Context, selector string) ([]extract.Element, error) {
	return p.query(ctx, selector)
}

func (p *Page) query(ctx context.Context, selector string, opts ...chromedp.QueryOption) ([]extract.Element, error) {
	var nodes []*cdp.Node
	opts = append([]chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}, opts...)
	if err := p.nav.run(ctx, queryTimeout, chromedp.Nodes(selector, &nodes, opts...)); err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	out := make([]extract.Element, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, &element{page: p, node: node})
	}
	return out, nil
}

// Scroll walks the panel down in steps and back to the top, so sections that
// render on demand (website, social links) are in the DOM.
func (p *Page) Scroll(ctx context.Context) error {
	steps := p.nav.cfg.PanelScrollSteps
	pause := p.nav.cfg.ScrollPause
	for _, delta := range []int{panelScrollStep, -panelScrollStep} {
		for i := 0; i < steps; i++ {
			var ok bool
			if err := p.nav.run(ctx, queryTimeout, chromedp.Evaluate(panelScroll(delta), &ok)); err != nil {
				return fmt.Errorf("scroll panel: %w", err)
			}
			if !ok {
				return fmt.Errorf("scroll panel: no detail panel")
			}
			if err := sleep(ctx, pause); err != nil {
				return err
			}
		}
		pause /= 2
	}
	return nil
}

// URL is the tab location once the detail panel opened.
func (p *Page) URL() string {
	return p.url
}

type element struct {
	page *Page
	node *cdp.Node
}

func (e *element) Text(ctx context.Context) (string, error) {
	var text string
	err := e.page.nav.run(ctx, queryTimeout,
		chromedp.TextContent([]cdp.NodeID{e.node.NodeID}, &text, chromedp.ByNodeID),
	)
	if err != nil {
		return "", fmt.Errorf("text of %s: %w", e.node.LocalName, err)
	}
	return strings.TrimSpace(text), nil
}

func (e *element) Attr(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	value, ok := e.node.Attribute(name)
	return value, ok, nil
}

func (e *element) Query(ctx context.Context, selector string) ([]extract.Element, error) {
	return e.page.query(ctx, selector, chromedp.FromNode(e.node))
}
