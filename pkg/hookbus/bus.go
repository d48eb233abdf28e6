// Package hookbus is the in-memory dispatch bus for plugin lifecycle hooks.
// A bus lives for exactly one reload generation: registrations accumulate
// during activation and the whole bus is replaced at the next reload.
package hookbus

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/arion-app/arion-plugins/pkg/diagnostics"
)

// Mode distinguishes payload-transforming hooks from side-effect-only ones.
type Mode string

const (
	// ModeModify hooks run sequentially; each may replace the payload.
	ModeModify Mode = "modify"
	// ModeObserve hooks run concurrently on the final payload; their
	// return values are discarded.
	ModeObserve Mode = "observe"
)

// DefaultPriority applies when a registration carries no usable priority.
const DefaultPriority = 100

// Handler is a hook callback. For modify hooks a non-nil result replaces
// the payload; observe hook results are discarded.
type Handler func(ctx context.Context, payload any, hctx map[string]any) (any, error)

// Registration is one plugin hook bound to an event.
type Registration struct {
	PluginID string
	Event    Event
	Mode     Mode
	Priority int
	Handler  Handler
}

// Info is the introspection view of a registration.
type Info struct {
	PluginID string `json:"pluginId"`
	Event    Event  `json:"event"`
	Mode     Mode   `json:"mode"`
	Priority int    `json:"priority"`
}

// NormalizePriority converts a plugin-supplied priority value into an int,
// falling back to DefaultPriority for absent or non-finite values.
func NormalizePriority(raw any) int {
	switch v := raw.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return DefaultPriority
		}
		return int(v)
	}
	return DefaultPriority
}

// Bus holds hook registrations and dispatches events.
type Bus struct {
	logger zerolog.Logger

	mu      sync.RWMutex
	byEvent map[Event][]Registration
}

// New creates an empty bus.
func New(logger zerolog.Logger) *Bus {
	return &Bus{
		logger:  logger.With().Str("component", "hookbus").Logger(),
		byEvent: make(map[Event][]Registration),
	}
}

// Register adds a hook. Unrecognized events are silently dropped; callers
// that want a diagnostic validate event membership before registering.
// Registrations stay sorted by (priority desc, pluginId asc) so dispatch
// order is deterministic regardless of registration order.
func (b *Bus) Register(reg Registration) {
	if !ValidEvent(reg.Event) {
		b.logger.Debug().
			Str("plugin", reg.PluginID).
			Str("event", string(reg.Event)).
			Msg("Dropping hook for unrecognized event")
		return
	}
	if reg.Handler == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	regs := append(b.byEvent[reg.Event], reg)
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].Priority != regs[j].Priority {
			return regs[i].Priority > regs[j].Priority
		}
		return regs[i].PluginID < regs[j].PluginID
	})
	b.byEvent[reg.Event] = regs
}

// Emit dispatches an event. Modify hooks run first, strictly sequentially
// in sorted order, each receiving the current payload; observe hooks then
// run concurrently on the final payload and are all awaited. Handler
// failures become diagnostics; Emit itself never fails.
func (b *Bus) Emit(ctx context.Context, event Event, payload any, hctx map[string]any) (any, []diagnostics.Diagnostic) {
	b.mu.RLock()
	regs := append([]Registration(nil), b.byEvent[event]...)
	b.mu.RUnlock()

	if len(regs) == 0 {
		return payload, nil
	}

	var diags []diagnostics.Diagnostic

	for _, reg := range regs {
		if reg.Mode != ModeModify {
			continue
		}
		result, err := callHandler(ctx, reg, payload, hctx)
		if err != nil {
			diags = append(diags, diagnostics.Error(diagnostics.CodePluginHookModifyError,
				fmt.Sprintf("modify hook for %s failed: %v", event, err)).
				WithPlugin(reg.PluginID))
			continue
		}
		if result != nil {
			payload = result
		}
	}

	var (
		wg     sync.WaitGroup
		diagMu sync.Mutex
	)
	for _, reg := range regs {
		if reg.Mode != ModeObserve {
			continue
		}
		wg.Add(1)
		go func(reg Registration) {
			defer wg.Done()
			if _, err := callHandler(ctx, reg, payload, hctx); err != nil {
				diagMu.Lock()
				diags = append(diags, diagnostics.Error(diagnostics.CodePluginHookObserverError,
					fmt.Sprintf("observe hook for %s failed: %v", event, err)).
					WithPlugin(reg.PluginID))
				diagMu.Unlock()
			}
		}(reg)
	}
	wg.Wait()

	return payload, diags
}

// callHandler invokes a handler with panic recovery so one hook can never
// take down dispatch.
func callHandler(ctx context.Context, reg Registration, payload any, hctx map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("hook panicked: %v", r)
		}
	}()
	return reg.Handler(ctx, payload, hctx)
}

// List returns a stable snapshot of all registrations, sorted by
// (event asc, priority desc, pluginId asc).
func (b *Bus) List() []Info {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var infos []Info
	for event, regs := range b.byEvent {
		for _, reg := range regs {
			infos = append(infos, Info{
				PluginID: reg.PluginID,
				Event:    event,
				Mode:     reg.Mode,
				Priority: reg.Priority,
			})
		}
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Event != infos[j].Event {
			return infos[i].Event < infos[j].Event
		}
		if infos[i].Priority != infos[j].Priority {
			return infos[i].Priority > infos[j].Priority
		}
		return infos[i].PluginID < infos[j].PluginID
	})
	return infos
}

// Len returns the number of registrations across all events.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := 0
	for _, regs := range b.byEvent {
		total += len(regs)
	}
	return total
}
