package segment

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lootledger/lootledger/internal/classify"
	"github.com/lootledger/lootledger/internal/model"
)

// fakeRunStore records run boundaries in memory.
type fakeRunStore struct {
	nextID    int64
	created   []model.Run
	closed    map[int64]time.Time
	createErr error
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{closed: make(map[int64]time.Time)}
}

func (f *fakeRunStore) CreateRun(run model.Run) (int64, error) {
	if f.createErr != nil {
		err := f.createErr
		f.createErr = nil
		return 0, err
	}
	f.nextID++
	run.ID = f.nextID
	f.created = append(f.created, run)
	return f.nextID, nil
}

func (f *fakeRunStore) CloseRun(id int64, endedAt time.Time) error {
	f.closed[id] = endedAt
	return nil
}

// fakeNotifier records lifecycle callbacks in order.
type fakeNotifier struct {
	started []model.Run
	ended   []model.Run
}

func (f *fakeNotifier) RunStarted(run model.Run) { f.started = append(f.started, run) }
func (f *fakeNotifier) RunEnded(run model.Run)   { f.ended = append(f.ended, run) }

var t0 = time.Date(2026, 8, 31, 21, 0, 0, 0, time.Local)

func enter(path string, offset time.Duration) classify.ZoneEnter {
	return classify.ZoneEnter{Time: t0.Add(offset), Path: path}
}

func newSegmenter(t *testing.T) (*Segmenter, *fakeRunStore, *fakeNotifier) {
	t.Helper()
	store := newFakeRunStore()
	notifier := &fakeNotifier{}
	return New(DefaultConfig(), store, notifier, nil), store, notifier
}

func TestIdleToActiveOnNonHub(t *testing.T) {
	s, store, notifier := newSegmenter(t)

	s.OnZoneEnter(enter("f2_dunes", 0))

	assert.Equal(t, StateActive, s.State())
	run, ok := s.CurrentRun()
	require.True(t, ok)
	assert.Equal(t, "Sunburnt Dunes", run.ZoneName)
	assert.Equal(t, "f2_dunes", run.ZoneSig)
	require.Len(t, store.created, 1)
	require.Len(t, notifier.started, 1)
}

func TestActiveToIdleOnHub(t *testing.T) {
	s, store, notifier := newSegmenter(t)

	s.OnZoneEnter(enter("f2_dunes", 0))
	s.OnZoneEnter(enter("hub_hideout", 5*time.Minute))

	assert.Equal(t, StateIdle, s.State())
	require.Len(t, notifier.ended, 1)
	assert.Equal(t, t0.Add(5*time.Minute), store.closed[1])
}

func TestBackToBackRunsNeverMerge(t *testing.T) {
	s, store, notifier := newSegmenter(t)

	s.OnZoneEnter(enter("f2_dunes", 0))
	s.OnZoneEnter(enter("f1_gorge", 3*time.Minute))

	// Exactly one run closed, exactly one still open.
	assert.Equal(t, StateActive, s.State())
	require.Len(t, store.created, 2)
	require.Len(t, notifier.ended, 1)
	assert.Equal(t, "Sunburnt Dunes", notifier.ended[0].ZoneName)

	run, _ := s.CurrentRun()
	assert.Equal(t, "Briar Gorge", run.ZoneName)
}

func TestNeverTwoOpenRuns(t *testing.T) {
	s, store, _ := newSegmenter(t)

	zones := []string{"f2_dunes", "f1_gorge", "f3_depths", "hub_hideout", "f2_ruins"}
	for i, z := range zones {
		s.OnZoneEnter(enter(z, time.Duration(i)*time.Minute))
	}

	open := 0
	for _, run := range store.created {
		if _, closed := store.closed[runID(t, store, run)]; !closed {
			open++
		}
	}
	assert.Equal(t, 1, open, "only the last run may be open")
}

func runID(t *testing.T, store *fakeRunStore, run model.Run) int64 {
	t.Helper()
	for i, r := range store.created {
		if r.UID == run.UID {
			return int64(i + 1)
		}
	}
	t.Fatalf("run %s not found", run.UID)
	return 0
}

func TestStartupMidMap(t *testing.T) {
	s, store, _ := newSegmenter(t)

	// First event ever observed is a non-hub entry: still a run.
	s.OnZoneEnter(enter("f3_depths", 0))

	assert.Equal(t, StateActive, s.State())
	require.Len(t, store.created, 1)
}

func TestHubToHubIsNoRun(t *testing.T) {
	s, store, notifier := newSegmenter(t)

	s.OnZoneEnter(enter("hub_town", 0))
	s.OnZoneEnter(enter("hub_hideout", time.Minute))

	assert.Equal(t, StateIdle, s.State())
	assert.Empty(t, store.created)
	assert.Empty(t, notifier.started)
}

func TestZoneDisambiguationViaLevelTriple(t *testing.T) {
	s, _, _ := newSegmenter(t)

	s.OnLevelInfo(classify.LevelInfo{Time: t0, UID: 884123, Type: 2, ID: 7204})
	s.OnZoneEnter(enter("f3_basin", time.Second))

	run, _ := s.CurrentRun()
	assert.Equal(t, "Eastern Basin", run.ZoneName, "7204 mod 100 = 4")
	assert.Equal(t, int64(7204), run.LevelID)
}

func TestZoneDisambiguationFallsBackWithoutTriple(t *testing.T) {
	s, _, _ := newSegmenter(t)

	s.OnZoneEnter(enter("f3_basin", 0))

	run, _ := s.CurrentRun()
	assert.Equal(t, "The Basin", run.ZoneName)
	assert.Zero(t, run.LevelID)
}

func TestStaleLevelTripleIgnored(t *testing.T) {
	s, _, _ := newSegmenter(t)

	s.OnLevelInfo(classify.LevelInfo{Time: t0, UID: 1, Type: 2, ID: 7204})
	s.OnZoneEnter(enter("f3_basin", time.Minute)) // past the level info window

	run, _ := s.CurrentRun()
	assert.Equal(t, "The Basin", run.ZoneName)
}

func TestUnmappedSuffixFallsBack(t *testing.T) {
	s, _, _ := newSegmenter(t)

	s.OnLevelInfo(classify.LevelInfo{Time: t0, UID: 1, Type: 2, ID: 7299}) // 99 unmapped
	s.OnZoneEnter(enter("f3_basin", time.Second))

	run, _ := s.CurrentRun()
	assert.Equal(t, "The Basin", run.ZoneName)
}

func TestTagDeltas(t *testing.T) {
	s, _, _ := newSegmenter(t)

	s.OnZoneEnter(enter("f2_dunes", 0))
	out := s.TagDeltas([]model.ItemDelta{{Timestamp: t0.Add(time.Minute), Item: 4023, Delta: 3}})
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].RunID)

	s.OnZoneEnter(enter("hub_hideout", 2*time.Minute))
	out = s.TagDeltas([]model.ItemDelta{{Timestamp: t0.Add(3 * time.Minute), Item: 4023, Delta: 5}})
	require.Len(t, out, 1)
	assert.Zero(t, out[0].RunID, "idle deltas carry no run")
}

// When the run row cannot be written the run still opens in memory,
// its deltas fall back to run-less and the loss is counted.
func TestRunPersistFailureLosesAttribution(t *testing.T) {
	s, store, _ := newSegmenter(t)
	store.createErr = errors.New("disk full")

	s.OnZoneEnter(enter("f2_dunes", 0))
	assert.Equal(t, StateActive, s.State())
	assert.Equal(t, int64(1), s.Stats().PersistFailures)

	out := s.TagDeltas([]model.ItemDelta{{Timestamp: t0.Add(time.Minute), Item: 4023, Delta: 3}})
	require.Len(t, out, 1)
	assert.Zero(t, out[0].RunID)

	// The next zone enter persists normally and attribution resumes.
	s.OnZoneEnter(enter("f1_gorge", 2*time.Minute))
	out = s.TagDeltas([]model.ItemDelta{{Timestamp: t0.Add(3 * time.Minute), Item: 4023, Delta: 2}})
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].RunID)
}

func TestMapEntryCostAttachesToNextRun(t *testing.T) {
	s, _, _ := newSegmenter(t)

	// Consume a map item in the hideout: held, not emitted.
	out := s.TagDeltas([]model.ItemDelta{{
		Timestamp: t0, Item: 9001, Delta: -1, Context: model.ContextOther,
	}})
	assert.Empty(t, out)

	// The run that starts within the window owns the cost.
	released := s.OnZoneEnter(enter("f2_dunes", 3*time.Second))
	require.Len(t, released, 1)
	assert.Equal(t, int64(1), released[0].RunID)
	assert.Equal(t, -1, released[0].Delta)
}

func TestHeldCostExpiresUntagged(t *testing.T) {
	s, _, _ := newSegmenter(t)

	s.TagDeltas([]model.ItemDelta{{
		Timestamp: t0, Item: 9001, Delta: -1, Context: model.ContextOther,
	}})

	// Window passes with no run start; the next batch releases it run-less.
	out := s.TagDeltas([]model.ItemDelta{{
		Timestamp: t0.Add(30 * time.Second), Item: 4023, Delta: 2,
	}})
	require.Len(t, out, 2)
	assert.Zero(t, out[0].RunID)
	assert.Equal(t, 9001, out[0].Item)
}

func TestFlushReleasesHeldDeltas(t *testing.T) {
	s, _, _ := newSegmenter(t)

	s.TagDeltas([]model.ItemDelta{{
		Timestamp: t0, Item: 9001, Delta: -1, Context: model.ContextOther,
	}})
	out := s.Flush()
	require.Len(t, out, 1)
	assert.Zero(t, out[0].RunID)
}

func TestAdoptOpenRun(t *testing.T) {
	s, store, notifier := newSegmenter(t)

	s.AdoptOpenRun(model.Run{ID: 42, ZoneSig: "f2_dunes", ZoneName: "Sunburnt Dunes", StartedAt: t0})
	assert.Equal(t, StateActive, s.State())

	// The adopted run closes normally on the next hub transition.
	s.OnZoneEnter(enter("hub_hideout", time.Minute))
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, t0.Add(time.Minute), store.closed[42])
	require.Len(t, notifier.ended, 1)
	assert.Equal(t, int64(42), notifier.ended[0].ID)
}

func TestIsHub(t *testing.T) {
	assert.True(t, IsHub("hub_hideout"))
	assert.True(t, IsHub("g1_town"))
	assert.True(t, IsHub("login_select"))
	assert.False(t, IsHub("f2_dunes"))
	assert.False(t, IsHub("m_crucible"))
}
