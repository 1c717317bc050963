package status

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"streamBot/internal/domain"
)

// Resolver routes stream-status lookups to the service registered for each
// platform. Services come and go as connections are (re)configured.
type Resolver struct {
	mu       sync.RWMutex
	services map[domain.Platform]domain.StreamStatusService
}

func NewResolver() *Resolver {
	return &Resolver{
		services: make(map[domain.Platform]domain.StreamStatusService),
	}
}

func (r *Resolver) Set(platform domain.Platform, svc domain.StreamStatusService) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if svc == nil {
		delete(r.services, platform)
		return
	}
	r.services[platform] = svc
}

func (r *Resolver) Status(ctx context.Context, platform domain.Platform) (domain.StreamStatus, error) {
	r.mu.RLock()
	svc := r.services[platform]
	r.mu.RUnlock()
	if svc == nil {
		return domain.StreamStatus{}, fmt.Errorf("no status service for platform %s", platform)
	}
	st, err := svc.Status(ctx)
	if err != nil {
		return domain.StreamStatus{}, err
	}
	st.Platform = platform
	return st, nil
}

// Snapshot queries every registered platform, skipping the ones that fail.
func (r *Resolver) Snapshot(ctx context.Context) []domain.StreamStatus {
	r.mu.RLock()
	services := make(map[domain.Platform]domain.StreamStatusService, len(r.services))
	for platform, svc := range r.services {
		services[platform] = svc
	}
	r.mu.RUnlock()

	out := make([]domain.StreamStatus, 0, len(services))
	for platform, svc := range services {
		st, err := svc.Status(ctx)
		if err != nil {
			slog.Warn("stream-status: lookup failed", slog.String("platform", string(platform)), slog.Any("err", err))
			continue
		}
		st.Platform = platform
		out = append(out, st)
	}
	return out
}
