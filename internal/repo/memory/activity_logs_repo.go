package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/geocoder89/authservice/internal/domain/activity"
)

type ActivityLogsRepo struct {
	mu   sync.RWMutex
	logs []activity.Log
	seen map[string]struct{}
}

func NewActivityLogsRepo() *ActivityLogsRepo {
	return &ActivityLogsRepo{seen: make(map[string]struct{})}
}

// Create ignores a log whose id is already stored, so redelivered queue items
// are written once.
func (r *ActivityLogsRepo) Create(ctx context.Context, l activity.Log) error {
	if err := l.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.seen[l.ID]; dup {
		return nil
	}
	r.seen[l.ID] = struct{}{}
	r.logs = append(r.logs, l)

	return nil
}

// List returns newest first.
func (r *ActivityLogsRepo) List(ctx context.Context, filter activity.ListFilter) ([]activity.Log, error) {
	r.mu.RLock()
	out := make([]activity.Log, 0, len(r.logs))
	for _, l := range r.logs {
		if filter.UserID != "" && l.UserID != filter.UserID {
			continue
		}
		out = append(out, l)
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	return page(out, filter.Limit, filter.Offset), nil
}
