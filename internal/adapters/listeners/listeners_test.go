package listeners

import (
	"testing"

	"github.com/sudheendra1210/Citycycle/internal/ports"
	"github.com/stretchr/testify/assert"
)

func TestSet_AddEmitRemove(t *testing.T) {
	var s Set
	var got []ports.ProviderEvent

	remove := s.Add(func(ev ports.ProviderEvent) { got = append(got, ev) })
	s.Emit(ports.EventLoaded)
	s.Emit(ports.EventSignedIn)
	assert.Equal(t, []ports.ProviderEvent{ports.EventLoaded, ports.EventSignedIn}, got)

	remove()
	remove()
	s.Emit(ports.EventSignedOut)
	assert.Len(t, got, 2)
	assert.Equal(t, 0, s.Len())
}

func TestSet_CallbackMayUnsubscribe(t *testing.T) {
	var s Set
	calls := 0
	var remove func()
	remove = s.Add(func(ports.ProviderEvent) {
		calls++
		remove()
	})

	s.Emit(ports.EventSignedIn)
	s.Emit(ports.EventSignedIn)
	assert.Equal(t, 1, calls)
}
