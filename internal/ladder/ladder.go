package ladder

import (
	"errors"

	"martingale-lab/internal/domain"
	"martingale-lab/internal/zone"
)

// Ladder state machine errors.
var (
	ErrLadderClosed = errors.New("ladder is closed")
	ErrNotPending   = errors.New("no leg order is pending")
)

// State is the ladder lifecycle phase.
type State int

// Ladder states. A ladder starts awaiting entry, arms into Watching,
// holds in LegPending while a leg order is in flight, freezes once the
// leg cap is reached, and closes with the cycle.
const (
	StateAwaitingEntry State = iota
	StateWatching
	StateLegPending
	StateFrozen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingEntry:
		return "AWAITING_ENTRY"
	case StateWatching:
		return "WATCHING"
	case StateLegPending:
		return "LEG_PENDING"
	case StateFrozen:
		return "FROZEN"
	case StateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// Intent is a request to place one leg order, emitted when a tick touches
// or crosses the armed boundary for the next leg index. The ladder holds
// the leg pending until the caller confirms the fill or releases it.
type Intent struct {
	LegIndex     int
	Direction    domain.Direction
	Side         zone.Side
	TriggerPrice float64
	DistancePct  float64
}

// Ladder tracks which leg is next, enforces direction alternation and
// single-flight leg placement, and decides when a tick converts into a
// leg order intent. It is not safe for concurrent use; the engine owns
// one ladder per cycle behind its decision loop.
type Ladder struct {
	policy       Policy
	zone         *zone.Model
	maxLegs      int
	thresholdPct float64
	retry        domain.OrderRetryPolicy

	state        State
	breakout     domain.BreakoutSide
	nextLeg      int
	upperCount   int
	lowerCount   int
	lastDir      domain.Direction
	hasDir       bool
	pendingDir   domain.Direction
	pendingSide  zone.Side
	prevPrice    float64
	hasPrev      bool
	awaitReCross bool
}

// New builds a ladder over a zone model. Settings are validated before a
// cycle starts, so maxLegs and the threshold arrive positive here.
func New(policy Policy, zm *zone.Model, maxLegs int, breakoutThresholdPct float64, retry domain.OrderRetryPolicy) *Ladder {
	return &Ladder{
		policy:       policy,
		zone:         zm,
		maxLegs:      maxLegs,
		thresholdPct: breakoutThresholdPct,
		retry:        retry,
		state:        StateAwaitingEntry,
		breakout:     domain.BreakoutNone,
	}
}

// State returns the current lifecycle phase.
func (l *Ladder) State() State { return l.state }

// NextLeg returns the index of the next leg to place.
func (l *Ladder) NextLeg() int { return l.nextLeg }

// Breakout returns the fixed breakout side, or BreakoutNone before a
// breakout variant arms.
func (l *Ladder) Breakout() domain.BreakoutSide { return l.breakout }

// Armed reports whether the entry condition has been met.
func (l *Ladder) Armed() bool {
	return l.state != StateAwaitingEntry && l.state != StateClosed
}

// OnTick advances the ladder with one price observation. It returns a
// non-nil Intent when the tick triggers the next leg; the ladder then
// refuses further intents until ConfirmFill, Release, or Fail is called.
func (l *Ladder) OnTick(price float64) (*Intent, error) {
	if l.state == StateClosed {
		return nil, ErrLadderClosed
	}
	prev, hadPrev := l.prevPrice, l.hasPrev
	l.prevPrice, l.hasPrev = price, true

	if l.state == StateAwaitingEntry {
		if !l.arm(price, prev, hadPrev) {
			return nil, nil
		}
		l.state = StateWatching
		// fall through: an arming tick may already sit past a boundary
	}
	if l.state != StateWatching {
		return nil, nil
	}

	side, outside := l.zone.Crossed(price, l.upperCount, l.lowerCount)
	if !outside {
		l.awaitReCross = false
		return nil, nil
	}
	if l.awaitReCross || !l.policy.SidePermitted(side, l.breakout) {
		return nil, nil
	}

	dir := l.policy.FirstLegDirection(side)
	if l.hasDir {
		dir = l.lastDir.Opposite()
	}
	idx := l.sideIndex(side)
	l.pendingDir = dir
	l.pendingSide = side
	l.state = StateLegPending
	return &Intent{
		LegIndex:     l.nextLeg,
		Direction:    dir,
		Side:         side,
		TriggerPrice: l.zone.Boundary(idx, side),
		DistancePct:  l.zone.Distance(idx),
	}, nil
}

// sideIndex returns the schedule index a side's next crossing uses. Each
// side consumes its boundaries independently, so a ladder that has only
// touched the top keeps its first lower boundary in reach.
func (l *Ladder) sideIndex(side zone.Side) int {
	if side == zone.Upper {
		return l.upperCount
	}
	return l.lowerCount
}

// arm evaluates the variant's entry condition for one tick.
func (l *Ladder) arm(price, prev float64, hadPrev bool) bool {
	center := l.zone.Center()
	if l.policy.ArmsOnBreakout {
		move := (price - center) / center * 100
		if move >= l.thresholdPct {
			l.breakout = domain.BreakoutUp
			return true
		}
		if -move >= l.thresholdPct {
			l.breakout = domain.BreakoutDown
			return true
		}
		return false
	}
	if price == center {
		return true
	}
	if !hadPrev {
		return false
	}
	return (prev < center && price > center) || (prev > center && price < center)
}

// ConfirmFill records the fill of the pending leg, fixes the alternation
// direction, and advances to the next leg. Reaching the leg cap freezes
// the ladder: the open legs remain managed but no further legs are added.
func (l *Ladder) ConfirmFill() error {
	if l.state != StateLegPending {
		return ErrNotPending
	}
	l.lastDir = l.pendingDir
	l.hasDir = true
	if l.pendingSide == zone.Upper {
		l.upperCount++
	} else {
		l.lowerCount++
	}
	l.nextLeg++
	if l.nextLeg >= l.maxLegs {
		l.state = StateFrozen
	} else {
		l.state = StateWatching
	}
	return nil
}

// Fail releases the pending leg after an order failure, applying the
// configured retry policy: WaitNextCrossing requires the price to pull
// back strictly inside the zone before the leg can trigger again.
func (l *Ladder) Fail() error {
	if err := l.Release(); err != nil {
		return err
	}
	if l.retry == domain.WaitNextCrossing {
		l.awaitReCross = true
	}
	return nil
}

// Release returns a pending leg to Watching without advancing, so the
// next qualifying tick re-emits it. Used when sizing rejects the leg.
func (l *Ladder) Release() error {
	if l.state != StateLegPending {
		return ErrNotPending
	}
	l.state = StateWatching
	return nil
}

// Close terminates the ladder when its cycle exits.
func (l *Ladder) Close() {
	l.state = StateClosed
}
