package segment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/rohanmehra24/unify-segment/internal/domain"
)

// fakeProfile is the minimal shape the qualification predicate reads.
type fakeProfile struct {
	id          string
	spend       domain.Cents
	lastEventAt *time.Time
}

// fakeStore evaluates the spend-floor-plus-recency predicate against
// in-memory data with the same semantics as the SQL query.
type fakeStore struct {
	audiences map[string]*domain.Audience
	profiles  []fakeProfile
	members   map[string][]string
	nextID    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		audiences: make(map[string]*domain.Audience),
		members:   make(map[string][]string),
	}
}

func (f *fakeStore) CreateAudience(ctx context.Context, name string, definition json.RawMessage) (*domain.Audience, error) {
	f.nextID++
	aud := &domain.Audience{
		ID:         fmt.Sprintf("aud-%d", f.nextID),
		Name:       name,
		Definition: definition,
		CreatedAt:  time.Now(),
	}
	f.audiences[aud.ID] = aud
	return aud, nil
}

func (f *fakeStore) GetAudience(ctx context.Context, id string) (*domain.Audience, error) {
	aud, ok := f.audiences[id]
	if !ok {
		return nil, fmt.Errorf("audience %s: %w", id, domain.ErrNotFound)
	}
	return aud, nil
}

func (f *fakeStore) ListAudiences(ctx context.Context) ([]domain.Audience, error) {
	var out []domain.Audience
	for _, aud := range f.audiences {
		out = append(out, *aud)
	}
	return out, nil
}

func (f *fakeStore) QualifyingProfileIDs(ctx context.Context, minSpend domain.Cents, since time.Time) ([]string, error) {
	var ids []string
	for _, p := range f.profiles {
		if p.spend < minSpend {
			continue
		}
		// Profiles with no events never qualify, whatever the window.
		if p.lastEventAt == nil || p.lastEventAt.Before(since) {
			continue
		}
		ids = append(ids, p.id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeStore) ReplaceMembers(ctx context.Context, audienceID string, profileIDs []string, builtAt time.Time) error {
	aud, ok := f.audiences[audienceID]
	if !ok {
		return fmt.Errorf("audience %s: %w", audienceID, domain.ErrNotFound)
	}
	f.members[audienceID] = append([]string(nil), profileIDs...)
	aud.LastBuiltAt = &builtAt
	return nil
}

func (f *fakeStore) ListMembers(ctx context.Context, audienceID string) ([]domain.AudienceMember, error) {
	var out []domain.AudienceMember
	for _, id := range f.members[audienceID] {
		out = append(out, domain.AudienceMember{ProfileID: id})
	}
	return out, nil
}

func newTestEngine(store Store) *Engine {
	return NewEngine(store, slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func timePtr(t time.Time) *time.Time { return &t }

func TestCreate_RequiresName(t *testing.T) {
	engine := newTestEngine(newFakeStore())

	_, err := engine.Create(context.Background(), "  ", nil)
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestCreate_StoresCanonicalDefinition(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)

	aud, err := engine.Create(context.Background(), "big spenders", json.RawMessage(`{"min_total_spend": 100}`))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	def, err := ParseDefinition(store.audiences[aud.ID].Definition)
	if err != nil {
		t.Fatalf("stored definition does not parse: %v", err)
	}
	if def.MinTotalSpend != 10000 {
		t.Errorf("stored min_total_spend = %d cents, want 10000", def.MinTotalSpend)
	}
	if def.DaysSinceLastEvent != RecencySentinelDays {
		t.Errorf("stored days_since_last_event = %d, want sentinel materialized", def.DaysSinceLastEvent)
	}
}

func TestRebuild_AppliesSpendFloorAndRecency(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	now := time.Now()

	store.profiles = []fakeProfile{
		{id: "p-qualifies", spend: 15000, lastEventAt: timePtr(now.AddDate(0, 0, -5))},
		{id: "p-too-cheap", spend: 5000, lastEventAt: timePtr(now.AddDate(0, 0, -5))},
		{id: "p-too-stale", spend: 15000, lastEventAt: timePtr(now.AddDate(0, 0, -45))},
		{id: "p-boundary", spend: 10000, lastEventAt: timePtr(now.AddDate(0, 0, -1))},
	}

	aud, err := engine.Create(context.Background(), "active spenders",
		json.RawMessage(`{"min_total_spend": 100, "days_since_last_event": 30}`))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	count, err := engine.Rebuild(context.Background(), aud.ID)
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if count != 2 {
		t.Errorf("member count = %d, want 2", count)
	}

	want := []string{"p-boundary", "p-qualifies"}
	got := store.members[aud.ID]
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("members = %v, want %v", got, want)
	}
	if store.audiences[aud.ID].LastBuiltAt == nil {
		t.Error("last_built_at not stamped")
	}
}

func TestRebuild_ZeroEventProfilesNeverQualify(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)

	// Heavy spender, but the spend was backfilled with no events logged.
	store.profiles = []fakeProfile{
		{id: "p-no-events", spend: 50000, lastEventAt: nil},
	}

	aud, err := engine.Create(context.Background(), "everyone",
		json.RawMessage(`{"min_total_spend": 100, "days_since_last_event": 30}`))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	count, err := engine.Rebuild(context.Background(), aud.ID)
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if count != 0 {
		t.Errorf("member count = %d, want 0 for a profile with no events", count)
	}
}

func TestRebuild_Idempotent(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	now := time.Now()

	store.profiles = []fakeProfile{
		{id: "p1", spend: 20000, lastEventAt: timePtr(now.AddDate(0, 0, -2))},
		{id: "p2", spend: 30000, lastEventAt: timePtr(now.AddDate(0, 0, -3))},
	}

	aud, err := engine.Create(context.Background(), "repeat",
		json.RawMessage(`{"min_total_spend": 100, "days_since_last_event": 30}`))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	first, err := engine.Rebuild(context.Background(), aud.ID)
	if err != nil {
		t.Fatalf("first rebuild: %v", err)
	}
	firstMembers := append([]string(nil), store.members[aud.ID]...)

	second, err := engine.Rebuild(context.Background(), aud.ID)
	if err != nil {
		t.Fatalf("second rebuild: %v", err)
	}

	if first != second {
		t.Errorf("member counts differ: %d vs %d", first, second)
	}
	secondMembers := store.members[aud.ID]
	if len(firstMembers) != len(secondMembers) {
		t.Fatalf("member sets differ in size: %v vs %v", firstMembers, secondMembers)
	}
	for i := range firstMembers {
		if firstMembers[i] != secondMembers[i] {
			t.Errorf("member sets differ: %v vs %v", firstMembers, secondMembers)
			break
		}
	}
}

func TestRebuild_DropsDepartedMembers(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	now := time.Now()

	store.profiles = []fakeProfile{
		{id: "p1", spend: 20000, lastEventAt: timePtr(now.AddDate(0, 0, -2))},
	}

	aud, err := engine.Create(context.Background(), "shrinking",
		json.RawMessage(`{"min_total_spend": 100, "days_since_last_event": 30}`))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := engine.Rebuild(context.Background(), aud.ID); err != nil {
		t.Fatalf("first rebuild: %v", err)
	}

	// The profile's last event ages out of the window.
	store.profiles[0].lastEventAt = timePtr(now.AddDate(0, 0, -60))

	count, err := engine.Rebuild(context.Background(), aud.ID)
	if err != nil {
		t.Fatalf("second rebuild: %v", err)
	}
	if count != 0 || len(store.members[aud.ID]) != 0 {
		t.Errorf("members = %v, want the departed profile removed", store.members[aud.ID])
	}
}

func TestRebuild_UnknownAudience(t *testing.T) {
	engine := newTestEngine(newFakeStore())

	_, err := engine.Rebuild(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestMembers_UnknownAudience(t *testing.T) {
	engine := newTestEngine(newFakeStore())

	_, err := engine.Members(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
