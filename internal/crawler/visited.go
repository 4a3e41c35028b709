package crawler

import "sync"

// VisitedSet tracks canonical URLs already converted into records. MarkIfNew
// is atomic, so concurrent workers cannot record the same URL twice.
type VisitedSet struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
}

// NewVisitedSet returns an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{seen: make(map[string]struct{})}
}

// MarkIfNew stores the URL if it has not been seen before and returns true.
func (v *VisitedSet) MarkIfNew(url string) bool {
	if v == nil || url == "" {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.seen[url]; ok {
		return false
	}
	v.seen[url] = struct{}{}
	v.order = append(v.order, url)
	return true
}

// Contains reports membership.
func (v *VisitedSet) Contains(url string) bool {
	if v == nil {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.seen[url]
	return ok
}

// Len returns the number of visited URLs.
func (v *VisitedSet) Len() int {
	if v == nil {
		return 0
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.order)
}

// URLs returns the visited URLs in insertion order.
func (v *VisitedSet) URLs() []string {
	if v == nil {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.order...)
}

// Clone copies the set. A nil set clones to an empty one.
func (v *VisitedSet) Clone() *VisitedSet {
	out := NewVisitedSet()
	if v == nil {
		return out
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, u := range v.order {
		out.seen[u] = struct{}{}
	}
	out.order = append(out.order, v.order...)
	return out
}
