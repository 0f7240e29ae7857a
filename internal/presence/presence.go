// Package presence tracks which sessions are currently connected and keeps a
// bounded log of what they did.
//
// Presence is observed, never declared: clients do not announce that they
// leave. An entry disappears only when EvictStale finds it has not been
// touched for the staleness window. Eviction is lazy and runs before every
// read that reports the registry contents.
package presence

import (
	"sort"
	"sync"
	"time"

	"lanshare/internal/clock"
)

const (
	DefaultStaleness = 5 * time.Minute
	DefaultCapacity  = 50
)

// Kind is the closed set of recorded actions.
type Kind string

const (
	KindBrowsing        Kind = "browsing"
	KindDownload        Kind = "download"
	KindUpload          Kind = "upload"
	KindUsernameChanged Kind = "username_changed"
	KindDisconnected    Kind = "disconnected"
)

// Entry is the live view of one session.
type Entry struct {
	SessionID     string
	Name          string
	RemoteAddress string
	ConnectedAt   time.Time
	LastSeenAt    time.Time
	Location      string
}

// Activity is an immutable log record.
type Activity struct {
	SessionID     string
	DisplayName   string
	Kind          Kind
	Detail        string
	Timestamp     time.Time
	RemoteAddress string
}

// Options configures a Registry. Zero values select the defaults.
type Options struct {
	Clock     clock.Clock
	Staleness time.Duration
	Capacity  int
	// OnActivity, when set, is called for every recorded activity after the
	// registry lock has been released.
	OnActivity func(Activity)
}

// Registry is safe for concurrent use. A single mutex guards the entry map
// and the activity log together, so a sweep and the disconnect records it
// produces are one atomic step.
type Registry struct {
	clock      clock.Clock
	staleness  time.Duration
	capacity   int
	onActivity func(Activity)

	mu         sync.Mutex
	entries    map[string]*Entry
	activities []Activity // most recent first
}

func New(opts Options) *Registry {
	r := &Registry{
		clock:      opts.Clock,
		staleness:  opts.Staleness,
		capacity:   opts.Capacity,
		onActivity: opts.OnActivity,
		entries:    map[string]*Entry{},
	}
	if r.clock == nil {
		r.clock = clock.Real{}
	}
	if r.staleness <= 0 {
		r.staleness = DefaultStaleness
	}
	if r.capacity <= 0 {
		r.capacity = DefaultCapacity
	}
	r.activities = make([]Activity, 0, r.capacity+1)
	return r
}

// Touch inserts or refreshes the entry for sessionID. connectedAt is only
// used when the entry is new; a zero value means now.
func (r *Registry) Touch(sessionID, name, remoteAddress, location string, connectedAt time.Time) {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		if connectedAt.IsZero() {
			connectedAt = now
		}
		e = &Entry{SessionID: sessionID, ConnectedAt: connectedAt}
		r.entries[sessionID] = e
	}
	e.Name = name
	e.RemoteAddress = remoteAddress
	e.Location = location
	e.LastSeenAt = now
}

// Heartbeat refreshes LastSeenAt of an existing entry. It never creates
// one and reports whether the session was present.
func (r *Registry) Heartbeat(sessionID string) bool {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		return false
	}
	e.LastSeenAt = now
	return true
}

// Rename updates the display name of an existing entry and counts as a sign
// of life. It reports whether the session was present.
func (r *Registry) Rename(sessionID, name string) bool {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		return false
	}
	e.Name = name
	e.LastSeenAt = now
	return true
}

// RecordActivity prepends a record stamped with the current time and drops
// the oldest records beyond capacity.
func (r *Registry) RecordActivity(sessionID, displayName string, kind Kind, detail, remoteAddress string) Activity {
	a := Activity{
		SessionID:     sessionID,
		DisplayName:   displayName,
		Kind:          kind,
		Detail:        detail,
		Timestamp:     r.clock.Now(),
		RemoteAddress: remoteAddress,
	}
	r.mu.Lock()
	r.appendLocked(a)
	r.mu.Unlock()
	r.notify([]Activity{a})
	return a
}

func (r *Registry) appendLocked(a Activity) {
	r.activities = append(r.activities, Activity{})
	copy(r.activities[1:], r.activities)
	r.activities[0] = a
	if len(r.activities) > r.capacity {
		clear(r.activities[r.capacity:])
		r.activities = r.activities[:r.capacity]
	}
}

// EvictStale removes every entry whose LastSeenAt is more than the
// staleness window before now and logs a disconnected activity for each.
// It returns the removed entries ordered by LastSeenAt.
func (r *Registry) EvictStale(now time.Time) []Entry {
	r.mu.Lock()
	evicted, recorded := r.evictLocked(now)
	r.mu.Unlock()
	r.notify(recorded)
	return evicted
}

func (r *Registry) evictLocked(now time.Time) ([]Entry, []Activity) {
	cutoff := now.Add(-r.staleness)
	var evicted []Entry
	for id, e := range r.entries {
		if e.LastSeenAt.Before(cutoff) {
			evicted = append(evicted, *e)
			delete(r.entries, id)
		}
	}
	if len(evicted) == 0 {
		return nil, nil
	}
	sort.Slice(evicted, func(i, j int) bool {
		if !evicted[i].LastSeenAt.Equal(evicted[j].LastSeenAt) {
			return evicted[i].LastSeenAt.Before(evicted[j].LastSeenAt)
		}
		return evicted[i].SessionID < evicted[j].SessionID
	})
	recorded := make([]Activity, 0, len(evicted))
	for _, e := range evicted {
		a := Activity{
			SessionID:     e.SessionID,
			DisplayName:   e.Name,
			Kind:          KindDisconnected,
			Detail:        "inactive for " + r.staleness.String(),
			Timestamp:     now,
			RemoteAddress: e.RemoteAddress,
		}
		r.appendLocked(a)
		recorded = append(recorded, a)
	}
	return evicted, recorded
}

func (r *Registry) notify(as []Activity) {
	if r.onActivity == nil {
		return
	}
	for _, a := range as {
		r.onActivity(a)
	}
}

// ListActive sweeps stale entries and returns a snapshot of the rest,
// ordered by ConnectedAt then SessionID.
func (r *Registry) ListActive() []Entry {
	r.mu.Lock()
	_, recorded := r.evictLocked(r.clock.Now())
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	r.mu.Unlock()
	r.notify(recorded)

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ConnectedAt.Before(out[j].ConnectedAt)
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out
}

// CountActive sweeps stale entries and returns how many remain.
func (r *Registry) CountActive() int {
	r.mu.Lock()
	_, recorded := r.evictLocked(r.clock.Now())
	n := len(r.entries)
	r.mu.Unlock()
	r.notify(recorded)
	return n
}

// Lookup returns a copy of the entry for sessionID without sweeping.
func (r *Registry) Lookup(sessionID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// RecentActivities returns up to limit records, most recent first, and the
// total number of records currently held. limit <= 0 returns all of them.
func (r *Registry) RecentActivities(limit int) ([]Activity, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := len(r.activities)
	if limit <= 0 || limit > total {
		limit = total
	}
	out := make([]Activity, limit)
	copy(out, r.activities[:limit])
	return out, total
}
