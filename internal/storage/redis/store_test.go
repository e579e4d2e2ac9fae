package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/FNOLSimulator/internal/events"
	"github.com/AaronLay10/FNOLSimulator/internal/presentation"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewFromClient(client, opts...), mr
}

func sampleSnapshot(runID string) *Snapshot {
	return &Snapshot{
		RunID:   runID,
		CaseID:  "FNOL-1",
		SavedAt: time.Now(),
		Status:  presentation.Status{CurrentStageID: "start", CurrentLabel: "Claim Received"},
		Frame: presentation.Frame{
			Nodes: []presentation.NodeDescriptor{{ID: "start", Label: "Claim Received"}},
		},
	}
}

func TestSaveLoad(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleSnapshot("run-1")))

	got, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "FNOL-1", got.CaseID)
	assert.Equal(t, "Claim Received", got.Status.CurrentLabel)
	require.Len(t, got.Frame.Nodes, 1)

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", latest.RunID)
}

func TestLoadMissing(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
	_, err = store.Latest(context.Background())
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestSaveRequiresRunID(t *testing.T) {
	store, _ := newTestStore(t)
	assert.Error(t, store.Save(context.Background(), &Snapshot{}))
}

func TestTTL(t *testing.T) {
	store, mr := newTestStore(t, WithTTL(time.Minute), WithPrefix("test:"))
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleSnapshot("run-1")))

	assert.True(t, mr.Exists("test:run-1"))
	assert.Equal(t, time.Minute, mr.TTL("test:run-1"))

	mr.FastForward(2 * time.Minute)
	_, err := store.Load(ctx, "run-1")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestList(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleSnapshot("run-1")))
	require.NoError(t, store.Save(ctx, sampleSnapshot("run-2")))

	runs, err := store.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"run-1", "run-2"}, runs)
}

func TestSyncerSavesOnStageChange(t *testing.T) {
	store, _ := newTestStore(t)
	saved := make(chan struct{}, 4)
	syncer := NewSyncer(store, func() *Snapshot {
		defer func() { saved <- struct{}{} }()
		return sampleSnapshot("run-9")
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go syncer.Run(ctx)

	syncer.Hook(events.Event{Name: events.LogAppended})
	syncer.Hook(events.Event{Name: events.StageActivated})

	select {
	case <-saved:
	case <-time.After(2 * time.Second):
		t.Fatal("syncer did not save")
	}

	require.Eventually(t, func() bool {
		_, err := store.Load(context.Background(), "run-9")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}
