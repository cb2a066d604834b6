// Package browser drives a live Chrome session against the map service.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/aluiziolira/leadscout/config"
	"github.com/aluiziolira/leadscout/extract"
)

// queryTimeout bounds a single DOM lookup made by an extraction strategy.
const queryTimeout = 3 * time.Second

// Navigator implements scraper.Navigator over one Chrome tab.
type Navigator struct {
	cfg *config.Config

	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// New launches Chrome with cfg's headless and user-agent settings.
func New(cfg *config.Config) (*Navigator, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("lang", "pt-BR"),
		chromedp.WindowSize(1400, 900),
		chromedp.UserAgent(cfg.UserAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	tab, cancelTab := chromedp.NewContext(allocCtx)

	// the first Run starts the browser
	if err := chromedp.Run(tab); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &Navigator{
		cfg:         cfg,
		tab:         tab,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}, nil
}

// run executes actions on the tab. They stop when ctx ends or timeout
// elapses, without closing the tab.
func (n *Navigator) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(n.tab, timeout)
	} else {
		runCtx, cancel = context.WithCancel(n.tab)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Open navigates to the search and dismisses the consent wall if shown.
func (n *Navigator) Open(ctx context.Context, url string) error {
	if err := n.run(ctx, n.cfg.ResultsTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	var clicked bool
	if err := n.run(ctx, queryTimeout, chromedp.Evaluate(consentScript, &clicked)); err != nil {
		slog.Debug("consent check failed", slog.Any("error", err))
	} else if clicked {
		slog.Debug("consent dialog dismissed")
	}
	return nil
}

// WaitResults waits for the first result card, then lets the feed settle.
func (n *Navigator) WaitResults(ctx context.Context, timeout time.Duration) error {
	if err := n.run(ctx, timeout, chromedp.WaitVisible(feedSelector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("result feed: %w", err)
	}
	return sleep(ctx, n.cfg.SettleDelay)
}

// LoadMore scrolls the result feed rounds times.
func (n *Navigator) LoadMore(ctx context.Context, rounds int) error {
	for i := 0; i < rounds; i++ {
		var scrolled bool
		if err := n.run(ctx, queryTimeout, chromedp.Evaluate(feedScroll(), &scrolled)); err != nil {
			return fmt.Errorf("scroll feed: %w", err)
		}
		if !scrolled {
			return fmt.Errorf("scroll feed: no feed element")
		}
		if err := sleep(ctx, n.cfg.ScrollPause); err != nil {
			return err
		}
	}
	return nil
}

// ListingCount counts the visible result cards.
func (n *Navigator) ListingCount(ctx context.Context) (int, error) {
	cards, err := n.cards(ctx)
	if err != nil {
		return 0, err
	}
	return len(cards), nil
}

func (n *Navigator) cards(ctx context.Context) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	err := n.run(ctx, queryTimeout,
		chromedp.Nodes(feedSelector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
	)
	if err != nil {
		return nil, fmt.Errorf("query cards: %w", err)
	}
	return nodes, nil
}

// OpenListing clicks card index and waits for its detail heading. The cards
// are queried again each time since clicking can re-render the feed.
func (n *Navigator) OpenListing(ctx context.Context, index int, timeout time.Duration) (extract.PageReader, error) {
	cards, err := n.cards(ctx)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(cards) {
		return nil, fmt.Errorf("listing %d not in feed (%d cards)", index, len(cards))
	}

	card := cards[index]
	if err := n.run(ctx, queryTimeout,
		chromedp.ScrollIntoView([]cdp.NodeID{card.NodeID}, chromedp.ByNodeID),
		chromedp.MouseClickNode(card),
	); err != nil {
		return nil, fmt.Errorf("click listing %d: %w", index, err)
	}

	if err := n.run(ctx, timeout, chromedp.WaitVisible(detailSelector, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("detail panel for listing %d: %w", index, err)
	}
	// the previous heading can still be visible right after the click; the
	// location is only read once the panel had time to swap
	if err := sleep(ctx, n.cfg.SettleDelay/2); err != nil {
		return nil, err
	}
	var location string
	if err := n.run(ctx, queryTimeout, chromedp.Location(&location)); err != nil {
		return nil, fmt.Errorf("location of listing %d: %w", index, err)
	}

	return &Page{nav: n, url: location}, nil
}

// Close shuts the tab and the browser.
func (n *Navigator) Close() error {
	n.cancelTab()
	n.cancelAlloc()
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
