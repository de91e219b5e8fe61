package collector

import (
	"time"

	"github.com/lootledger/lootledger/internal/model"
)

// NoticeKind identifies what a notice reports.
type NoticeKind string

const (
	NoticeDeltaRecorded     NoticeKind = "delta_recorded"
	NoticeRunStarted        NoticeKind = "run_started"
	NoticeRunEnded          NoticeKind = "run_ended"
	NoticePriceLearned      NoticeKind = "price_learned"
	NoticeSourceUnavailable NoticeKind = "source_unavailable"
)

// Notice is one observable pipeline event for external consumers.
// Only the fields relevant to the kind are populated.
type Notice struct {
	Kind NoticeKind
	Time time.Time

	Delta model.ItemDelta // DeltaRecorded
	Run   model.Run       // RunStarted, RunEnded
	Item  int             // PriceLearned
	Price float64         // PriceLearned
	// Available reports the source state for SourceUnavailable notices;
	// a recovery publishes the same kind with Available=true.
	Available bool
}

// NoticeBuffer is a bounded notice fan-out. Nobody consuming notices
// must never stall or grow the pipeline, so when the buffer is full the
// oldest notices are discarded.
type NoticeBuffer struct {
	buf     *GrowableBuffer[Notice]
	maxHeld int
}

// NewNoticeBuffer creates a notice buffer that retains at most maxHeld
// unconsumed notices.
func NewNoticeBuffer(maxHeld int) *NoticeBuffer {
	if maxHeld < 1 {
		maxHeld = 1
	}
	return &NoticeBuffer{
		buf:     NewGrowableBuffer[Notice](16),
		maxHeld: maxHeld,
	}
}

// Publish appends a notice, discarding the oldest when over capacity.
func (n *NoticeBuffer) Publish(notice Notice) {
	for n.buf.Len() >= n.maxHeld {
		n.buf.TryReceive()
	}
	n.buf.Send(notice)
}

// Receive blocks for the next notice; ok=false after Close and drain.
func (n *NoticeBuffer) Receive() (Notice, bool) { return n.buf.Receive() }

// Drain returns all queued notices without blocking.
func (n *NoticeBuffer) Drain() []Notice { return n.buf.DrainTo(0) }

// Len returns the number of queued notices.
func (n *NoticeBuffer) Len() int { return n.buf.Len() }

// Close stops the buffer; queued notices remain receivable.
func (n *NoticeBuffer) Close() { n.buf.Close() }
