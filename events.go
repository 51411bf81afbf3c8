package armsim

import (
	"sync"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
)

// EventKind is the fixed set of notifications an engine emits.
type EventKind int

const (
	EventPositionChanged EventKind = iota
	EventPositionUpdate
	EventJointsUpdate
	EventGripperChanged
	EventHomed
	EventEmergencyStop
	EventError
	EventRequestStatus
)

var eventKindNames = map[EventKind]string{
	EventPositionChanged: "positionChanged",
	EventPositionUpdate:  "positionUpdate",
	EventJointsUpdate:    "jointsUpdate",
	EventGripperChanged:  "gripperChanged",
	EventHomed:           "homed",
	EventEmergencyStop:   "emergencyStop",
	EventError:           "error",
	EventRequestStatus:   "requestStatus",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is implemented by every payload type below.
type Event interface {
	Kind() EventKind
}

// PositionChangedEvent is emitted once when a motion request completes.
type PositionChangedEvent struct {
	RequestID uuid.UUID
	State     RobotState
}

// PositionUpdateEvent is emitted for every interpolation step.
type PositionUpdateEvent struct {
	RequestID   uuid.UUID
	Position    r3.Vector
	Orientation Orientation
	// Progress runs from 0 (exclusive) to 1 at the final step.
	Progress float64
}

type JointsUpdateEvent struct {
	RequestID uuid.UUID
	Joints    Joints
}

type GripperChangedEvent struct {
	RequestID uuid.UUID
	Gripper   GripperState
}

type HomedEvent struct {
	RequestID uuid.UUID
	State     RobotState
}

type EmergencyStopEvent struct {
	// Cancelled counts the queued and in-flight requests that were dropped.
	Cancelled int
}

type ErrorEvent struct {
	RequestID uuid.UUID
	Err       error
}

type RequestStatusEvent struct {
	RequestID uuid.UUID
	Type      RequestType
	Status    RequestStatus
}

func (PositionChangedEvent) Kind() EventKind { return EventPositionChanged }
func (PositionUpdateEvent) Kind() EventKind { return EventPositionUpdate }
func (JointsUpdateEvent) Kind() EventKind { return EventJointsUpdate }
func (GripperChangedEvent) Kind() EventKind { return EventGripperChanged }
func (HomedEvent) Kind() EventKind { return EventHomed }
func (EmergencyStopEvent) Kind() EventKind { return EventEmergencyStop }
func (ErrorEvent) Kind() EventKind { return EventError }
func (RequestStatusEvent) Kind() EventKind { return EventRequestStatus }

// Observer receives engine events. OnEvent is called from the engine's
// goroutines and must not block. Progress events for a request are never
// delivered after the EmergencyStopEvent that cancelled it, so OnEvent must
// not call EmergencyStop on the engine it observes.
type Observer interface {
	OnEvent(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// ChannelObserver buffers events on a channel. When the buffer is full the
// oldest event is dropped so the engine never waits on a slow reader.
type ChannelObserver struct {
	ch chan Event
	mu sync.Mutex
}

func NewChannelObserver(buffer int) *ChannelObserver {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelObserver{ch: make(chan Event, buffer)}
}

func (o *ChannelObserver) Events() <-chan Event { return o.ch }

func (o *ChannelObserver) OnEvent(e Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for {
		select {
		case o.ch <- e:
			return
		default:
		}
		select {
		case <-o.ch:
		default:
		}
	}
}

// observers is a copy-on-write list so dispatch never holds a lock.
type observers struct {
	mu     sync.Mutex
	nextID int
	list   []observerEntry
}

type observerEntry struct {
	id  int
	obs Observer
}

func (o *observers) add(obs Observer) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextID
	o.nextID++
	next := make([]observerEntry, 0, len(o.list)+1)
	next = append(next, o.list...)
	o.list = append(next, observerEntry{id: id, obs: obs})
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		next := make([]observerEntry, 0, len(o.list))
		for _, e := range o.list {
			if e.id != id {
				next = append(next, e)
			}
		}
		o.list = next
	}
}

func (o *observers) emit(events ...Event) {
	o.mu.Lock()
	list := o.list
	o.mu.Unlock()
	for _, e := range events {
		for _, entry := range list {
			entry.obs.OnEvent(e)
		}
	}
}
