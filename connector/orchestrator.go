package connector

import (
	"context"
	"sort"
	"sync"

	"github.com/goliatone/flaresync"
	"github.com/goliatone/flaresync/social"
)

// Summary is the aggregate connection status.
type Summary struct {
	Statuses     map[flaresync.Platform]Status
	AnyConnected bool
}

// SummaryListener receives a Summary each time it changes.
type SummaryListener func(Summary)

// Orchestrator aggregates connectors. It has no network calls of its own;
// its status is recomputed from connector events.
type Orchestrator struct {
	logger flaresync.Logger

	mu          sync.RWMutex
	connectors  map[flaresync.Platform]*Connector
	statuses    map[flaresync.Platform]Status
	subscribers []SummaryListener
}

// NewOrchestrator creates an orchestrator over connectors.
func NewOrchestrator(logger flaresync.Logger, connectors ...*Connector) *Orchestrator {
	o := &Orchestrator{
		logger:     flaresync.NormalizeLogger(logger),
		connectors: map[flaresync.Platform]*Connector{},
		statuses:   map[flaresync.Platform]Status{},
	}
	for _, c := range connectors {
		o.Register(c)
	}
	return o
}

// Register adds c and starts tracking its status.
func (o *Orchestrator) Register(c *Connector) {
	if c == nil {
		return
	}

	o.mu.Lock()
	o.connectors[c.Platform()] = c
	o.statuses[c.Platform()] = c.Status()
	o.mu.Unlock()

	c.Subscribe(o.onEvent)
}

// Connector returns the connector for platform.
func (o *Orchestrator) Connector(platform flaresync.Platform) (*Connector, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	c, ok := o.connectors[platform]
	if !ok {
		return nil, ErrConnectorNotFound
	}
	return c, nil
}

// Platforms lists registered platforms in a stable order.
func (o *Orchestrator) Platforms() []flaresync.Platform {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]flaresync.Platform, 0, len(o.connectors))
	for p := range o.connectors {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Statuses returns a copy of the per platform status map.
func (o *Orchestrator) Statuses() map[flaresync.Platform]Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[flaresync.Platform]Status, len(o.statuses))
	for p, s := range o.statuses {
		out[p] = s
	}
	return out
}

// HasAnyConnected reports whether at least one platform is connected.
func (o *Orchestrator) HasAnyConnected() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return anyConnected(o.statuses)
}

// Profiles returns the known profiles of connected platforms.
func (o *Orchestrator) Profiles() []*flaresync.SocialProfile {
	out := []*flaresync.SocialProfile{}
	for _, p := range o.Platforms() {
		c, err := o.Connector(p)
		if err != nil {
			continue
		}
		if profile := c.Profile(); profile != nil {
			out = append(out, profile)
		}
	}
	return out
}

// Subscribe registers l for summary changes.
func (o *Orchestrator) Subscribe(l SummaryListener) {
	if l == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subscribers = append(o.subscribers, l)
}

// InitiateConnect starts a connection for platform.
func (o *Orchestrator) InitiateConnect(ctx context.Context, session flaresync.Session, platform flaresync.Platform, opts ...social.AuthCodeOption) (*AuthRedirect, error) {
	c, err := o.Connector(platform)
	if err != nil {
		return nil, err
	}
	return c.InitiateConnect(ctx, session, opts...)
}

// HandleCallback routes a provider redirect to the connector named by its
// platform parameter, then refreshes every connector from storage.
func (o *Orchestrator) HandleCallback(ctx context.Context, session flaresync.Session, rawURL string) (*flaresync.SocialProfile, error) {
	cb, err := ParseCallback(rawURL)
	if err != nil {
		return nil, err
	}

	platform, err := flaresync.ParsePlatform(cb.Platform)
	if err != nil {
		return nil, err
	}
	c, err := o.Connector(platform)
	if err != nil {
		return nil, err
	}

	if cb.Denied() {
		reason := cb.Error
		if cb.ErrorDescription != "" {
			reason = cb.ErrorDescription
		}
		return nil, c.CancelCallback(ctx, session, reason)
	}

	profile, err := c.HandleCallback(ctx, session, cb.Code, cb.State)
	if err != nil {
		return nil, err
	}

	if err := o.RefreshAll(ctx, session); err != nil {
		o.logger.Warn("profile refresh after callback failed", "platform", platform, "error", err)
	}
	return profile, nil
}

// RefreshAll seeds every connector from stored profiles with a single
// backend listing. Connectors busy with an operation are skipped.
func (o *Orchestrator) RefreshAll(ctx context.Context, session flaresync.Session) error {
	if err := checkSession(session); err != nil {
		return err
	}

	var backend Backend
	for _, p := range o.Platforms() {
		if c, err := o.Connector(p); err == nil {
			backend = c.backend
			break
		}
	}
	if backend == nil {
		return nil
	}

	profiles, err := backend.Profiles(ctx, session.GetAccessToken())
	if err != nil {
		return err
	}

	byPlatform := make(map[flaresync.Platform]*flaresync.SocialProfile, len(profiles))
	for _, p := range profiles {
		if p != nil {
			byPlatform[p.Platform] = p
		}
	}

	for _, p := range o.Platforms() {
		c, err := o.Connector(p)
		if err != nil {
			continue
		}
		if err := c.begin(); err != nil {
			o.logger.Debug("skipping refresh of busy connector", "platform", p)
			continue
		}
		c.seed(byPlatform[p])
		c.end()
	}
	return nil
}

func (o *Orchestrator) onEvent(e Event) {
	o.mu.Lock()
	o.statuses[e.Platform] = e.To
	summary := Summary{
		Statuses:     make(map[flaresync.Platform]Status, len(o.statuses)),
		AnyConnected: anyConnected(o.statuses),
	}
	for p, s := range o.statuses {
		summary.Statuses[p] = s
	}
	subscribers := append([]SummaryListener(nil), o.subscribers...)
	o.mu.Unlock()

	for _, l := range subscribers {
		l(summary)
	}
}

func anyConnected(statuses map[flaresync.Platform]Status) bool {
	for _, s := range statuses {
		if s == StatusConnected {
			return true
		}
	}
	return false
}
