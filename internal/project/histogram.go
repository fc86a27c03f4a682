package project

// Histogram counts names in first-seen order. Counts never decrease.
type Histogram struct {
	order  []string
	counts map[string]int
}

// NewHistogram returns an empty histogram.
func NewHistogram() *Histogram {
	return &Histogram{counts: make(map[string]int)}
}

// Add increments name by one.
func (h *Histogram) Add(name string) {
	if _, ok := h.counts[name]; !ok {
		h.order = append(h.order, name)
	}
	h.counts[name]++
}

// Count returns the count for name.
func (h *Histogram) Count(name string) int { return h.counts[name] }

// Has reports whether name was recorded.
func (h *Histogram) Has(name string) bool {
	_, ok := h.counts[name]
	return ok
}

// Keys returns the recorded names in first-seen order.
func (h *Histogram) Keys() []string {
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// Len returns the number of distinct names.
func (h *Histogram) Len() int { return len(h.order) }
