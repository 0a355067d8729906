package model

import (
	"errors"
	"fmt"
	"slices"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// TransitionError reports an event that is not allowed from the current state.
type TransitionError struct {
	From  string
	Event string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s from status %q", e.Event, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// Machine is a transition table of (state, event) -> state.
type Machine[S ~string, E ~string] struct {
	table map[S]map[E]S
}

func NewMachine[S ~string, E ~string](table map[S]map[E]S) *Machine[S, E] {
	return &Machine[S, E]{table: table}
}

// Fire returns the state reached by applying event to from.
func (m *Machine[S, E]) Fire(from S, event E) (S, error) {
	if to, ok := m.table[from][event]; ok {
		return to, nil
	}
	return from, &TransitionError{From: string(from), Event: string(event)}
}

func (m *Machine[S, E]) Can(from S, event E) bool {
	_, ok := m.table[from][event]
	return ok
}

// Sources lists, sorted, every state event may be fired from. Conditional
// updates use it as their status guard.
func (m *Machine[S, E]) Sources(event E) []S {
	var out []S
	for from, events := range m.table {
		if _, ok := events[event]; ok {
			out = append(out, from)
		}
	}
	slices.Sort(out)
	return out
}

type SessionEvent string

const (
	SessionEventStart    SessionEvent = "start"
	SessionEventComplete SessionEvent = "complete"
	SessionEventCancel   SessionEvent = "cancel"
)

var SessionMachine = NewMachine(map[SessionStatus]map[SessionEvent]SessionStatus{
	SessionStatusScheduled: {
		SessionEventStart:    SessionStatusInProgress,
		SessionEventComplete: SessionStatusCompleted,
		SessionEventCancel:   SessionStatusCancelled,
	},
	SessionStatusInProgress: {
		SessionEventComplete: SessionStatusCompleted,
	},
})

type BookingEvent string

const (
	BookingEventConfirm  BookingEvent = "confirm"
	BookingEventDecline  BookingEvent = "decline"
	BookingEventStart    BookingEvent = "start"
	BookingEventComplete BookingEvent = "complete"
	BookingEventCancel   BookingEvent = "cancel"
	BookingEventNoShow   BookingEvent = "no_show"
)

var BookingMachine = NewMachine(map[BookingStatus]map[BookingEvent]BookingStatus{
	BookingStatusPending: {
		BookingEventConfirm: BookingStatusConfirmed,
		BookingEventDecline: BookingStatusCancelled,
		BookingEventCancel:  BookingStatusCancelled,
	},
	BookingStatusConfirmed: {
		BookingEventStart:    BookingStatusInProgress,
		BookingEventComplete: BookingStatusCompleted,
		BookingEventCancel:   BookingStatusCancelled,
		BookingEventNoShow:   BookingStatusNoShow,
	},
	BookingStatusInProgress: {
		BookingEventComplete: BookingStatusCompleted,
	},
})
