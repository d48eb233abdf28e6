package platform

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnPluginChange(t *testing.T) {
	h := newHost(t)
	writePlugin(t, h.globalDir(), "first", staticEchoPlugin, nil)

	p := newPlatform(t, h, nil)
	first := p.Reload(context.Background())

	w, err := NewWatcher(p, 50*time.Millisecond, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Let the watcher establish its watch set before mutating the tree.
	time.Sleep(100 * time.Millisecond)

	writePlugin(t, h.globalDir(), "second", `return {
		tools = { { name = "added", description = "added after start",
			execute = function() return 1 end } },
	}`, nil)

	require.Eventually(t, func() bool {
		snap := p.Snapshot()
		if snap == nil || snap.GenerationID == first.GenerationID {
			return false
		}
		_, ok := p.Tool("added")
		return ok
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
