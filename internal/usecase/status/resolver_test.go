package status

import (
	"context"
	"errors"
	"testing"

	"streamBot/internal/domain"
)

type stubService struct {
	status domain.StreamStatus
	err    error
}

func (s *stubService) Status(ctx context.Context) (domain.StreamStatus, error) {
	return s.status, s.err
}

func TestStatusRoutesByPlatform(t *testing.T) {
	r := NewResolver()
	r.Set(domain.PlatformTwitch, &stubService{status: domain.StreamStatus{IsLive: true, Title: "live on twitch"}})

	st, err := r.Status(context.Background(), domain.PlatformTwitch)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !st.IsLive || st.Platform != domain.PlatformTwitch {
		t.Fatalf("status = %+v, want live twitch status", st)
	}

	if _, err := r.Status(context.Background(), domain.PlatformKick); err == nil {
		t.Fatal("platform without a service should error")
	}
}

func TestSetNilRemovesService(t *testing.T) {
	r := NewResolver()
	r.Set(domain.PlatformTwitch, &stubService{})
	r.Set(domain.PlatformTwitch, nil)
	if _, err := r.Status(context.Background(), domain.PlatformTwitch); err == nil {
		t.Fatal("removed service should no longer answer")
	}
}

func TestSnapshotSkipsFailingServices(t *testing.T) {
	r := NewResolver()
	r.Set(domain.PlatformTwitch, &stubService{status: domain.StreamStatus{IsLive: true}})
	r.Set(domain.PlatformKick, &stubService{err: errors.New("api down")})

	statuses := r.Snapshot(context.Background())
	if len(statuses) != 1 {
		t.Fatalf("got %d statuses, want 1 (the failing platform is skipped)", len(statuses))
	}
	if statuses[0].Platform != domain.PlatformTwitch {
		t.Fatalf("snapshot platform = %s, want twitch", statuses[0].Platform)
	}
}
