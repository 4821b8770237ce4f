package uiverify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// AsyncState is the harness-side model of an external state machine that
// is only observable through rendered text.
type AsyncState int

const (
	// StateIdle means neither the transient nor the terminal text is shown.
	StateIdle AsyncState = iota
	// StateTransient means the in-progress text is shown.
	StateTransient
	// StateTerminal means the completion text is shown.
	StateTerminal
)

// String returns a string representation of the state.
func (s AsyncState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTransient:
		return "transient"
	case StateTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// TransitionSpec describes one expected progression through an async
// operation's rendered states.
type TransitionSpec struct {
	// Name prefixes the recorded check names.
	Name string
	// Transient is the in-progress text, e.g. "Syncing...".
	Transient string
	// Terminal is the completion text, e.g. "Synced!".
	Terminal string
	// TransientWithin bounds the first sighting of Transient, measured
	// from the mark.
	TransientWithin time.Duration
	// TerminalWithin bounds the first sighting of Terminal, measured
	// from the mark.
	TerminalWithin time.Duration
}

// Transition is what the observer saw while waiting on a TransitionSpec.
type Transition struct {
	Spec TransitionSpec
	// TransientSeen reports whether the transient text was ever sampled.
	TransientSeen bool
	// TransientAt is the offset from the mark of the first transient sighting.
	TransientAt time.Duration
	// TerminalAt is the offset from the mark of the first terminal sighting.
	TerminalAt time.Duration
	// TransientSample and TerminalSample are the zero-based indexes of the
	// sampling rounds in which each text was first seen.
	TransientSample int
	TerminalSample  int
	// States is the sequence of distinct states sampled, in order.
	States []AsyncState
}

// Ordered reports whether the transient state was seen in an earlier
// sample than the terminal state.
func (t Transition) Ordered() bool {
	return t.TransientSeen && t.TransientSample < t.TerminalSample
}

// Observer waits for text-level state changes on a page.
type Observer struct {
	page     Page
	clock    Clock
	interval time.Duration
	result   *Result
	logger   *slog.Logger
}

// NewObserver creates an Observer sampling every interval. Checks from
// WaitTransition are recorded into result.
func NewObserver(page Page, interval time.Duration, clock Clock, result *Result, logger *slog.Logger) *Observer {
	return &Observer{page: page, clock: clock, interval: interval, result: result, logger: logger}
}

// Mark returns the current time, to be taken just before the action whose
// effects are awaited.
func (o *Observer) Mark() time.Time {
	return o.clock.Now()
}

// TextVisible reports whether any element containing text is visible.
func (o *Observer) TextVisible(ctx context.Context, text string) (bool, error) {
	els, err := o.page.ElementsByText(ctx, text)
	if err != nil {
		return false, fmt.Errorf("failed to search for %q: %w", text, err)
	}
	for _, el := range els {
		v, err := el.Visible(ctx)
		if errors.Is(err, ErrStaleElement) {
			continue
		}
		if err != nil {
			return false, err
		}
		if v {
			return true, nil
		}
	}
	return false, nil
}

// WaitForText waits until text is visible and returns how long it took.
// Exceeding timeout yields *TimeoutVerificationError.
func (o *Observer) WaitForText(ctx context.Context, text string, timeout time.Duration) (time.Duration, error) {
	elapsed, err := poll(ctx, o.clock, timeout, o.interval, func(ctx context.Context) (bool, error) {
		return o.TextVisible(ctx, text)
	})
	if errors.Is(err, errPollTimeout) {
		return elapsed, &TimeoutVerificationError{Text: text, Elapsed: elapsed, Timeout: timeout}
	}
	return elapsed, err
}

// State samples the current state of spec's operation. The terminal text
// wins when both are visible.
func (o *Observer) State(ctx context.Context, spec TransitionSpec) (AsyncState, error) {
	term, err := o.TextVisible(ctx, spec.Terminal)
	if err != nil {
		return StateIdle, err
	}
	if term {
		return StateTerminal, nil
	}
	trans, err := o.TextVisible(ctx, spec.Transient)
	if err != nil {
		return StateIdle, err
	}
	if trans {
		return StateTransient, nil
	}
	return StateIdle, nil
}

// WaitTransition samples spec's transient and terminal texts in one loop
// until the terminal text appears or TerminalWithin elapses since mark.
// Each sighting is timed when the query that made it returns, so query
// cost counts against the bounds.
//
// A missing transient sighting is recorded as a warning: the operation may
// legitimately finish between two samples. A late transient sighting or a
// missing or late terminal state is a failure.
func (o *Observer) WaitTransition(ctx context.Context, mark time.Time, spec TransitionSpec) (Transition, error) {
	tr := Transition{Spec: spec, States: []AsyncState{StateIdle}}
	record := func(s AsyncState) {
		if tr.States[len(tr.States)-1] != s {
			tr.States = append(tr.States, s)
		}
	}

	for sample := 0; ; sample++ {
		if !tr.TransientSeen {
			seen, err := o.TextVisible(ctx, spec.Transient)
			if err != nil {
				return tr, err
			}
			if seen {
				tr.TransientSeen = true
				tr.TransientAt = o.clock.Now().Sub(mark)
				tr.TransientSample = sample
				record(StateTransient)
				o.logger.Debug("transient state observed", "text", spec.Transient, "elapsed", tr.TransientAt)
			}
		}

		done, err := o.TextVisible(ctx, spec.Terminal)
		if err != nil {
			return tr, err
		}
		elapsed := o.clock.Now().Sub(mark)
		if done {
			tr.TerminalAt = elapsed
			tr.TerminalSample = sample
			record(StateTerminal)
			o.logger.Debug("terminal state observed", "text", spec.Terminal, "elapsed", elapsed)
			break
		}

		if elapsed >= spec.TerminalWithin {
			terr := &TimeoutVerificationError{Text: spec.Terminal, Elapsed: elapsed, Timeout: spec.TerminalWithin}
			o.result.Fail(spec.Name+".terminal", fmt.Sprintf("%q within %v", spec.Terminal, spec.TerminalWithin), "not observed", terr)
			return tr, terr
		}
		if err := sleep(ctx, o.interval); err != nil {
			return tr, err
		}
	}

	o.recordTransition(tr)
	if tr.TerminalAt > spec.TerminalWithin {
		return tr, &TimeoutVerificationError{Text: spec.Terminal, Elapsed: tr.TerminalAt, Timeout: spec.TerminalWithin}
	}
	if tr.TransientSeen && tr.TransientAt > spec.TransientWithin {
		return tr, &TimeoutVerificationError{Text: spec.Transient, Elapsed: tr.TransientAt, Timeout: spec.TransientWithin}
	}
	return tr, nil
}

func (o *Observer) recordTransition(tr Transition) {
	spec := tr.Spec
	switch {
	case !tr.TransientSeen:
		o.result.Warn(spec.Name+".transient",
			fmt.Sprintf("%q was not observed before %q; the operation may have completed between samples", spec.Transient, spec.Terminal))
	case tr.TransientAt > spec.TransientWithin:
		o.result.Fail(spec.Name+".transient", fmt.Sprintf("%q within %v", spec.Transient, spec.TransientWithin),
			tr.TransientAt.String(), &TimeoutVerificationError{Text: spec.Transient, Elapsed: tr.TransientAt, Timeout: spec.TransientWithin})
	default:
		o.result.Pass(spec.Name+".transient", fmt.Sprintf("%q within %v", spec.Transient, spec.TransientWithin), tr.TransientAt.String())
	}

	terminal := fmt.Sprintf("%q within %v", spec.Terminal, spec.TerminalWithin)
	if tr.TerminalAt > spec.TerminalWithin {
		o.result.Fail(spec.Name+".terminal", terminal, tr.TerminalAt.String(),
			&TimeoutVerificationError{Text: spec.Terminal, Elapsed: tr.TerminalAt, Timeout: spec.TerminalWithin})
	} else {
		o.result.Pass(spec.Name+".terminal", terminal, tr.TerminalAt.String())
	}

	if tr.TransientSeen {
		if tr.Ordered() {
			o.result.Pass(spec.Name+".order", "transient before terminal", "transient before terminal")
		} else {
			o.result.Warn(spec.Name+".order",
				fmt.Sprintf("%q and %q were first observed in the same sample", spec.Transient, spec.Terminal))
		}
	}
}
