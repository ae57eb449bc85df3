package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/reels-cli/reels/catalog"
	"github.com/reels-cli/reels/feed"
	"github.com/reels-cli/reels/key"
	"github.com/reels-cli/reels/log"
	"github.com/reels-cli/reels/media"
	"github.com/spf13/viper"
)

type (
	catalogMsg       []media.Item
	catalogFailedMsg struct{ err error }
	snapshotMsg      feed.Snapshot
)

func (b *statefulBubble) endpoint() string {
	if b.options.Endpoint != "" {
		return b.options.Endpoint
	}
	return viper.GetString(key.CatalogEndpoint)
}

func (b *statefulBubble) fetchCatalog() tea.Cmd {
	endpoint := b.endpoint()
	timeout := time.Duration(viper.GetInt(key.CatalogTimeout)) * time.Second

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		items, err := catalog.Fetch(ctx, endpoint)
		if err != nil {
			return catalogFailedMsg{err: err}
		}
		return catalogMsg(items)
	}
}

// startFeed builds the playback stack on first use and starts the feed with items.
func (b *statefulBubble) startFeed(items []media.Item) error {
	if b.stack == nil {
		s, err := newStack(b.options, func(snapshot feed.Snapshot) {
			b.send(snapshotMsg(snapshot))
		})
		if err != nil {
			return err
		}
		b.stack = s

		if b.height > 0 {
			rows := float64(b.height)
			s.do(func(c *feed.Controller) {
				c.SetViewport(rows)
			})
		}
	}

	b.items = items
	b.stack.start(items)
	return nil
}

func (b *statefulBubble) shutdown() {
	if b.stack == nil {
		return
	}

	log.Info("shutting down feed")
	b.stack.close()
	b.stack = nil
}
