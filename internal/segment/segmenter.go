package segment

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lootledger/lootledger/internal/classify"
	"github.com/lootledger/lootledger/internal/model"
)

// State is the segmenter's position in the run state machine.
type State int

const (
	// StateIdle means no open run; the character is presumed in a hub.
	StateIdle State = iota
	// StateActive means a run is open in a non-hub zone.
	StateActive
)

// RunStore persists run boundaries.
type RunStore interface {
	CreateRun(run model.Run) (int64, error)
	CloseRun(id int64, endedAt time.Time) error
}

// Notifier receives run lifecycle events.
type Notifier interface {
	RunStarted(run model.Run)
	RunEnded(run model.Run)
}

// Config holds segmenter settings.
type Config struct {
	// CostWindow bounds how long an idle consumption delta is held
	// waiting for the run it paid for.
	CostWindow time.Duration
	// LevelInfoWindow bounds how old a level triple may be and still
	// describe the next zone entry.
	LevelInfoWindow time.Duration
	// MaxHeldCosts caps the pending consumption list.
	MaxHeldCosts int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		CostWindow:      10 * time.Second,
		LevelInfoWindow: 10 * time.Second,
		MaxHeldCosts:    16,
	}
}

// Stats contains segmenter counters.
type Stats struct {
	RunsStarted     int64
	RunsEnded       int64
	HeldCosts       int64
	ReleasedCosts   int64
	ExpiredCosts    int64
	PersistFailures int64
}

type heldDelta struct {
	delta    model.ItemDelta
	deadline time.Time
}

// Segmenter is the run-boundary state machine. It is driven from the
// single ingestion goroutine and is the sole mutator of the active run.
type Segmenter struct {
	cfg      Config
	store    RunStore
	notifier Notifier
	logger   *slog.Logger

	state     State
	current   model.Run
	character string

	lastLevel     classify.LevelInfo
	lastLevelSeen time.Time

	held  []heldDelta
	stats Stats
}

// New creates a segmenter in the idle state.
func New(cfg Config, store RunStore, notifier Notifier, logger *slog.Logger) *Segmenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Segmenter{
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// AdoptOpenRun resumes a run the previous process left open. The run
// stays open until the next hub transition (or the next run) closes it.
func (s *Segmenter) AdoptOpenRun(run model.Run) {
	s.state = StateActive
	s.current = run
	s.logger.Info("adopted open run",
		"run_id", run.ID,
		"zone", run.ZoneName,
		"started_at", run.StartedAt,
	)
}

// SetCharacter records the identity new runs are attributed to.
func (s *Segmenter) SetCharacter(name string) {
	s.character = name
}

// State returns the current machine state.
func (s *Segmenter) State() State { return s.state }

// CurrentRun returns the active run while in StateActive.
func (s *Segmenter) CurrentRun() (model.Run, bool) {
	if s.state != StateActive {
		return model.Run{}, false
	}
	return s.current, true
}

// OnLevelInfo remembers the structured triple for the zone entry that
// follows it in the log.
func (s *Segmenter) OnLevelInfo(ev classify.LevelInfo) {
	s.lastLevel = ev
	s.lastLevelSeen = ev.Time
}

// OnZoneEnter applies one zone transition. It returns any held
// consumption deltas that now belong to the newly started run.
func (s *Segmenter) OnZoneEnter(ev classify.ZoneEnter) []model.ItemDelta {
	if IsHub(ev.Path) {
		if s.state == StateActive {
			s.closeRun(ev.Time)
		}
		// Hub-to-hub movement is not a transition worth recording.
		return s.expireHeld(ev.Time)
	}

	// Non-hub entry. A second non-hub transition while active closes the
	// previous run first; transitions are never silently merged.
	if s.state == StateActive {
		s.closeRun(ev.Time)
	}
	return s.openRun(ev)
}

// TagDeltas stamps deltas with the active run. While idle, consumption
// deltas (negative quantity, outside a pickup block) are held for the
// cost window so a map opened in the hideout lands on the run it starts;
// everything else passes through run-less. The returned slice is what
// may be emitted now.
func (s *Segmenter) TagDeltas(deltas []model.ItemDelta) []model.ItemDelta {
	out := s.expireHeld(nowFrom(deltas))

	for _, d := range deltas {
		if s.state == StateActive {
			d.RunID = s.current.ID
			out = append(out, d)
			continue
		}
		if d.Delta < 0 && d.Context == model.ContextOther && s.cfg.CostWindow > 0 {
			if len(s.held) >= s.cfg.MaxHeldCosts {
				// Oldest out first; the list stays bounded.
				out = append(out, s.held[0].delta)
				s.held = s.held[1:]
				s.stats.ExpiredCosts++
			}
			s.held = append(s.held, heldDelta{delta: d, deadline: d.Timestamp.Add(s.cfg.CostWindow)})
			s.stats.HeldCosts++
			continue
		}
		out = append(out, d)
	}
	return out
}

// Flush releases all held deltas untagged. Called on shutdown.
func (s *Segmenter) Flush() []model.ItemDelta {
	out := make([]model.ItemDelta, 0, len(s.held))
	for _, h := range s.held {
		out = append(out, h.delta)
		s.stats.ExpiredCosts++
	}
	s.held = nil
	return out
}

// Stats returns current counters.
func (s *Segmenter) Stats() Stats { return s.stats }

func (s *Segmenter) openRun(ev classify.ZoneEnter) []model.ItemDelta {
	var levelID int64
	if !s.lastLevelSeen.IsZero() && ev.Time.Sub(s.lastLevelSeen) <= s.cfg.LevelInfoWindow {
		levelID = s.lastLevel.ID
	}
	s.lastLevelSeen = time.Time{}

	run := model.Run{
		UID:       uuid.NewString(),
		Character: s.character,
		StartedAt: ev.Time,
		ZoneSig:   ev.Path,
		ZoneName:  ResolveZoneName(ev.Path, levelID),
		LevelID:   levelID,
	}

	id, err := s.store.CreateRun(run)
	if err != nil {
		// The run stays active in memory but has no row, so its deltas
		// fall back to run-less (RunID 0) until the next zone enter.
		s.stats.PersistFailures++
		s.logger.Error("failed to persist run start", "zone", run.ZoneName, "error", err)
	}
	run.ID = id

	s.state = StateActive
	s.current = run
	s.stats.RunsStarted++

	s.logger.Info("run started",
		"run_id", run.ID,
		"zone", run.ZoneName,
		"zone_sig", run.ZoneSig,
		"level_id", run.LevelID,
	)

	if s.notifier != nil {
		s.notifier.RunStarted(run)
	}

	// Held map-entry costs belong to this run.
	released := make([]model.ItemDelta, 0, len(s.held))
	for _, h := range s.held {
		d := h.delta
		d.RunID = run.ID
		released = append(released, d)
		s.stats.ReleasedCosts++
	}
	s.held = nil
	return released
}

func (s *Segmenter) closeRun(endedAt time.Time) {
	run := s.current
	run.EndedAt = endedAt

	if run.ID != 0 {
		if err := s.store.CloseRun(run.ID, endedAt); err != nil {
			s.logger.Error("failed to persist run end", "run_id", run.ID, "error", err)
		}
	}

	s.state = StateIdle
	s.current = model.Run{}
	s.stats.RunsEnded++

	s.logger.Info("run ended",
		"run_id", run.ID,
		"zone", run.ZoneName,
		"duration", endedAt.Sub(run.StartedAt),
	)

	if s.notifier != nil {
		s.notifier.RunEnded(run)
	}
}

// expireHeld releases held deltas whose window has passed, untagged.
func (s *Segmenter) expireHeld(now time.Time) []model.ItemDelta {
	if len(s.held) == 0 || now.IsZero() {
		return nil
	}
	var out []model.ItemDelta
	kept := s.held[:0]
	for _, h := range s.held {
		if now.After(h.deadline) {
			out = append(out, h.delta)
			s.stats.ExpiredCosts++
			continue
		}
		kept = append(kept, h)
	}
	s.held = kept
	return out
}

func nowFrom(deltas []model.ItemDelta) time.Time {
	if len(deltas) == 0 {
		return time.Time{}
	}
	return deltas[0].Timestamp
}
