package session

import (
	"sort"

	"github.com/phobologic/saccade/internal/document"
	"github.com/phobologic/saccade/internal/lang"
	"github.com/phobologic/saccade/internal/model"
	"github.com/phobologic/saccade/internal/parse"
	"github.com/phobologic/saccade/internal/selection"
)

// DocumentState is everything the engine remembers about one document.
type DocumentState struct {
	doc  *document.Document
	lang *lang.Language

	cache parse.Cache
	// pending holds edits made since the cached tree was parsed.
	pending *parse.Update

	history selection.History
	// last is the selection the engine most recently handed out.
	last *model.Selection

	// markers caches whether the document has explicit markers; nil
	// means not yet checked.
	markers *bool

	flashes map[uint64]model.Range
}

// Document returns the current snapshot, or nil before the first open.
func (s *DocumentState) Document() *document.Document { return s.doc }

// Tree returns the cached tree, or nil.
func (s *DocumentState) Tree() *parse.Tree { return s.cache.Tree() }

// HistoryLen returns the depth of the selection history.
func (s *DocumentState) HistoryLen() int { return s.history.Len() }

// Flashes returns the ranges currently highlighted as evaluating.
func (s *DocumentState) Flashes() []model.Range {
	out := make([]model.Range, 0, len(s.flashes))
	for _, r := range s.flashes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func (s *DocumentState) resetSelection() {
	s.history.Clear()
	s.last = nil
}

// Registry maps document keys to their state.
type Registry struct {
	states map[string]*DocumentState
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{states: make(map[string]*DocumentState)}
}

// StateFor returns the state for key, creating an empty one on first use.
func (r *Registry) StateFor(key string) *DocumentState {
	if s, ok := r.states[key]; ok {
		return s
	}
	s := &DocumentState{flashes: make(map[uint64]model.Range)}
	r.states[key] = s
	return s
}

// Lookup returns the state for key without creating it.
func (r *Registry) Lookup(key string) (*DocumentState, bool) {
	s, ok := r.states[key]
	return s, ok
}

// Discard forgets key and everything held for it.
func (r *Registry) Discard(key string) {
	if s, ok := r.states[key]; ok {
		s.cache.Reset()
		s.flashes = nil
		delete(r.states, key)
	}
}

// Len returns the number of tracked documents.
func (r *Registry) Len() int {
	return len(r.states)
}
