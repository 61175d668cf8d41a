package bot

import "sync"

// dedup tracks recently seen message IDs. The LINE Platform redelivers
// webhooks on slow or failed acknowledgements, so the same message can
// arrive more than once.
type dedup struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
	limit int
}

func newDedup(limit int) *dedup {
	return &dedup{
		seen:  make(map[string]struct{}, limit),
		limit: limit,
	}
}

// observe records the ID and reports whether it was seen for the first time.
// The oldest entries are evicted once the limit is reached.
func (d *dedup) observe(id string) bool {
	if id == "" {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return false
	}

	d.seen[id] = struct{}{}
	d.order = append(d.order, id)

	for len(d.order) > d.limit {
		delete(d.seen, d.order[0])
		d.order = d.order[1:]
	}
	return true
}
