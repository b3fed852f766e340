package rotation

import "github.com/pscheid92/linkorbit/internal/domain"

// recentRing is a fixed-size ring of actions; the oldest entry is
// overwritten once it is full.
type recentRing struct {
	items []domain.RecentAction
	next  int
	count int
}

func newRecentRing(size int) *recentRing {
	if size < 1 {
		size = 1
	}
	return &recentRing{items: make([]domain.RecentAction, size)}
}

func (r *recentRing) push(a domain.RecentAction) {
	r.items[r.next] = a
	r.next = (r.next + 1) % len(r.items)
	if r.count < len(r.items) {
		r.count++
	}
}

// newest returns up to limit entries, most recent first.
func (r *recentRing) newest(limit int) []domain.RecentAction {
	n := r.count
	if limit >= 0 && limit < n {
		n = limit
	}
	out := make([]domain.RecentAction, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.next - i + len(r.items)) % len(r.items)
		out = append(out, r.items[idx])
	}
	return out
}

func (r *recentRing) len() int { return r.count }
