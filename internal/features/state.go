package features

import (
	"mockly/internal/model"
)

// Event is an input to the interview state machine.
type Event string

const (
	EventQuestionsGenerated Event = "questions-generated"
	EventStart              Event = "start"
	EventAnswer             Event = "answer"
	EventComplete           Event = "complete"
	EventRetake             Event = "retake"
)

var transitions = map[model.Status]map[Event]model.Status{
	model.StatusNotStarted: {
		EventQuestionsGenerated: model.StatusReady,
		EventStart:              model.StatusInProgress,
		EventRetake:             model.StatusNotStarted,
	},
	model.StatusReady: {
		EventStart: model.StatusInProgress,
	},
	model.StatusInProgress: {
		EventAnswer:   model.StatusInProgress,
		EventComplete: model.StatusCompleted,
	},
	model.StatusCompleted: {
		EventRetake: model.StatusNotStarted,
	},
}

// Transition returns the status reached by applying ev in from, or a
// *model.TransitionError when the pair is not allowed.
func Transition(from model.Status, ev Event) (model.Status, error) {
	to, ok := transitions[from][ev]
	if !ok {
		return from, &model.TransitionError{From: from, Event: string(ev)}
	}
	return to, nil
}

// guard checks the data preconditions of ev on i on top of Transition.
func guard(i *model.Interview, ev Event, index int) error {
	switch ev {
	case EventStart, EventComplete:
		if len(i.Questions) == 0 {
			return &model.TransitionError{From: i.Status, Event: string(ev), Reason: "interview has no questions"}
		}
	case EventAnswer:
		if index < 0 || index >= len(i.Questions) {
			return &model.TransitionError{From: i.Status, Event: string(ev), Reason: "question index out of range"}
		}
	}
	return nil
}

// next validates ev against i and returns the resulting status.
func next(i *model.Interview, ev Event, index int) (model.Status, error) {
	to, err := Transition(i.Status, ev)
	if err != nil {
		return i.Status, err
	}
	if err := guard(i, ev, index); err != nil {
		return i.Status, err
	}
	return to, nil
}
