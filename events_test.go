package armsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelObserverDropsOldest(t *testing.T) {
	obs := NewChannelObserver(2)
	for i := 1; i <= 3; i++ {
		obs.OnEvent(EmergencyStopEvent{Cancelled: i})
	}

	require.Len(t, obs.Events(), 2)
	assert.Equal(t, EmergencyStopEvent{Cancelled: 2}, <-obs.Events())
	assert.Equal(t, EmergencyStopEvent{Cancelled: 3}, <-obs.Events())
}

func TestObservers(t *testing.T) {
	var list observers
	var got []string
	first := list.add(ObserverFunc(func(e Event) { got = append(got, "first:"+e.Kind().String()) }))
	list.add(ObserverFunc(func(e Event) { got = append(got, "second:"+e.Kind().String()) }))

	list.emit(HomedEvent{}, EmergencyStopEvent{})
	assert.Equal(t, []string{"first:homed", "second:homed", "first:emergencyStop", "second:emergencyStop"}, got)

	first()
	got = nil
	list.emit(ErrorEvent{})
	assert.Equal(t, []string{"second:error"}, got)

	// Removing twice is harmless.
	first()
	list.emit(ErrorEvent{})
	assert.Len(t, got, 2)
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "positionChanged", PositionChangedEvent{}.Kind().String())
	assert.Equal(t, "requestStatus", RequestStatusEvent{}.Kind().String())
	assert.Equal(t, "unknown", EventKind(99).String())
}
