// Package store holds the reconciled download state assembled from the
// recorder's feed. It merges the slow meta stream and the fast metrics
// stream into one view per download id, tolerating out-of-order and lossy
// delivery: stale or illegal updates are silently ignored, never errors.
package store

import (
	"sort"
	"sync"

	"recwatch/internal/domain"
)

// entry is the arena slot for one download id: both halves plus the
// precomputed join. Keeping the halves in one slot avoids the two-map
// synchronization problems of tracking meta and metrics separately.
type entry struct {
	meta       domain.DownloadMeta
	metrics    domain.DownloadMetrics
	hasMeta    bool
	hasMetrics bool
	view       domain.DownloadView
}

// Store is the in-memory reconciliation state. One writer (the feed's read
// loop) applies mutations; the RWMutex exists for concurrent HTTP and hub
// readers. Each mutation recomputes the affected view before releasing the
// lock, so readers never observe a half-merged entry.
type Store struct {
	mu         sync.RWMutex
	entries    map[domain.DownloadID]*entry
	terminated map[domain.DownloadID]struct{}
	version    uint64
}

func New() *Store {
	return &Store{
		entries:    make(map[domain.DownloadID]*entry),
		terminated: make(map[domain.DownloadID]struct{}),
	}
}

// ApplySnapshot replaces all state with the server's full list of active
// downloads and clears the terminated set. Snapshot entries bypass the meta
// ordering check: the server's connect-time state is authoritative.
func (s *Store) ApplySnapshot(downloads []domain.DownloadState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[domain.DownloadID]*entry, len(downloads))
	s.terminated = make(map[domain.DownloadID]struct{})
	for _, st := range downloads {
		id := st.Meta.DownloadID
		if id == "" {
			id = st.Metrics.DownloadID
		}
		if id == "" {
			continue
		}
		e := &entry{meta: st.Meta, metrics: st.Metrics, hasMeta: true, hasMetrics: true}
		e.view = domain.Join(e.meta, e.metrics, e.hasMeta)
		s.entries[id] = e
	}
	s.version++
}

// ApplyMeta merges a meta update, subject to the ordering rules:
//   - updates to terminated ids are ignored;
//   - a versioned update older than the stored version is ignored;
//   - an unversioned update (updatedAtMs == 0) never overwrites a versioned one.
//
// The return value reports whether the update was accepted.
func (s *Store) ApplyMeta(meta domain.DownloadMeta) bool {
	if meta.DownloadID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dead := s.terminated[meta.DownloadID]; dead {
		return false
	}
	e := s.entries[meta.DownloadID]
	if e != nil && e.hasMeta && e.meta.UpdatedAtMs != 0 {
		if meta.UpdatedAtMs == 0 || meta.UpdatedAtMs < e.meta.UpdatedAtMs {
			return false
		}
	}
	if e == nil {
		e = &entry{}
		s.entries[meta.DownloadID] = e
	}
	e.meta = mergeMeta(e.meta, meta, e.hasMeta)
	e.hasMeta = true
	e.view = domain.Join(e.meta, e.metrics, e.hasMeta)
	s.version++
	return true
}

// ApplyMetrics merges a metrics update. Metrics carry no ordering token; the
// latest received always wins, field by field over the previous record.
func (s *Store) ApplyMetrics(metrics domain.DownloadMetrics) bool {
	if metrics.DownloadID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dead := s.terminated[metrics.DownloadID]; dead {
		return false
	}
	e := s.entries[metrics.DownloadID]
	if e == nil {
		e = &entry{}
		s.entries[metrics.DownloadID] = e
	}
	e.metrics = mergeMetrics(e.metrics, metrics)
	e.hasMetrics = true
	e.view = domain.Join(e.meta, e.metrics, e.hasMeta)
	s.version++
	return true
}

// MarkTerminated records a terminal event for the id and evicts its state.
// Membership is sticky: later meta/metrics updates for the id are ignored
// until the next snapshot.
func (s *Store) MarkTerminated(id domain.DownloadID) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.terminated[id] = struct{}{}
	delete(s.entries, id)
	s.version++
}

// Clear drops all state, terminated ids included. Equivalent to applying an
// empty snapshot; a no-op (version unchanged) when already empty.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) == 0 && len(s.terminated) == 0 {
		return
	}
	s.entries = make(map[domain.DownloadID]*entry)
	s.terminated = make(map[domain.DownloadID]struct{})
	s.version++
}

// Views returns all current views sorted by download id.
func (s *Store) Views() []domain.DownloadView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]domain.DownloadView, 0, len(s.entries))
	for _, e := range s.entries {
		views = append(views, e.view)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].DownloadID < views[j].DownloadID })
	return views
}

// View returns the current view for one download id.
func (s *Store) View(id domain.DownloadID) (domain.DownloadView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return domain.DownloadView{}, domain.ErrNotFound
	}
	return e.view, nil
}

// ViewsByStreamer returns the views whose streamer id matches.
func (s *Store) ViewsByStreamer(streamerID string) []domain.DownloadView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var views []domain.DownloadView
	for _, e := range s.entries {
		if e.view.StreamerID == streamerID {
			views = append(views, e.view)
		}
	}
	sort.Slice(views, func(i, j int) bool { return views[i].DownloadID < views[j].DownloadID })
	return views
}

// HasActive reports whether any tracked download belongs to the streamer.
func (s *Store) HasActive(streamerID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.view.StreamerID == streamerID {
			return true
		}
	}
	return false
}

// Version returns the mutation counter. It increments on every accepted
// mutation, letting consumers detect change without comparing views.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Len returns the number of tracked downloads.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// TerminatedCount returns the size of the sticky terminated set.
func (s *Store) TerminatedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.terminated)
}

// mergeMeta folds an accepted update into the stored meta. Empty incoming
// fields keep the stored value; startedAtMs is immutable once set.
func mergeMeta(old, in domain.DownloadMeta, hasOld bool) domain.DownloadMeta {
	if !hasOld {
		return in
	}
	out := old
	out.DownloadID = in.DownloadID
	if in.StreamerID != "" {
		out.StreamerID = in.StreamerID
	}
	if in.SessionID != "" {
		out.SessionID = in.SessionID
	}
	if in.EngineType != "" {
		out.EngineType = in.EngineType
	}
	if old.StartedAtMs == 0 {
		out.StartedAtMs = in.StartedAtMs
	}
	if in.UpdatedAtMs != 0 {
		out.UpdatedAtMs = in.UpdatedAtMs
	}
	if in.CDNHost != "" {
		out.CDNHost = in.CDNHost
	}
	if in.DownloadURL != "" {
		out.DownloadURL = in.DownloadURL
	}
	return out
}

// mergeMetrics applies last-write-wins per field. Counters and gauges are
// taken from the incoming record; the status string survives an update that
// omits it (proto3 cannot distinguish "empty" from "absent").
func mergeMetrics(old, in domain.DownloadMetrics) domain.DownloadMetrics {
	out := in
	if in.Status == "" {
		out.Status = old.Status
	}
	return out
}
