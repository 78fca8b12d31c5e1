package bootstrap

import (
	"context"
	"errors"
	"testing"

	coreconfig "github.com/m3rciful/quicklink/core/config"
)

type memStore struct {
	seeded []string
	closed bool
}

func (m *memStore) Close() error {
	m.closed = true
	return nil
}

func noLogger(*coreconfig.Config) error { return nil }

func TestRunSeedsInOrder(t *testing.T) {
	store := &memStore{}
	res, err := Run(context.Background(), Options[*memStore]{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Open:       func(context.Context) (*memStore, error) { return store, nil },
		Modules: Modules[*memStore]{Seeders: []Seeder[*memStore]{
			SeederFunc[*memStore](func(_ context.Context, s *memStore) error { s.seeded = append(s.seeded, "features"); return nil }),
			SeederFunc[*memStore](func(_ context.Context, s *memStore) error { s.seeded = append(s.seeded, "meta"); return nil }),
		}},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Storage != store || len(store.seeded) != 2 || store.seeded[1] != "meta" {
		t.Fatalf("seeded = %v", store.seeded)
	}
}

func TestRunClosesStorageOnSeedFailure(t *testing.T) {
	store := &memStore{}
	boom := errors.New("boom")
	_, err := Run(context.Background(), Options[*memStore]{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Open:       func(context.Context) (*memStore, error) { return store, nil },
		Modules: Modules[*memStore]{Seeders: []Seeder[*memStore]{
			SeederFunc[*memStore](func(context.Context, *memStore) error { return boom }),
		}},
	})
	if !errors.Is(err, boom) || !store.closed {
		t.Fatalf("err = %v, closed = %v", err, store.closed)
	}
}

func TestRunRequiresConfigAndOpener(t *testing.T) {
	if _, err := Run(context.Background(), Options[*memStore]{}); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := Run(context.Background(), Options[*memStore]{Config: &coreconfig.Config{}, LoggerInit: noLogger}); err == nil {
		t.Fatal("expected error for missing opener")
	}
}
