package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/visiona/smartpole/internal/lifecycle"
)

func TestDispatchRoutesToExactlyOneHandler(t *testing.T) {
	var got []string
	d := NewDispatcher(Handlers{
		Error: func(ErrorEvent) { got = append(got, "error") },
		EOS:   func(EOSEvent) { got = append(got, "eos") },
		StateChanged: func(ev StateChangedEvent) {
			got = append(got, "state:"+ev.New.String())
		},
	})

	d.Dispatch(EOSEvent{Origin: "pipeline"})
	d.Dispatch(StateChangedEvent{Origin: "pipeline", New: lifecycle.StatePlaying})
	d.Dispatch(ErrorEvent{Origin: "decode", Message: "bad frame"})

	assert.Equal(t, []string{"eos", "state:playing", "error"}, got)
	assert.Equal(t, uint64(0), d.Dropped())
}

func TestDispatchUnhandledDropped(t *testing.T) {
	var unhandled []string
	d := NewDispatcher(Handlers{
		EOS: func(EOSEvent) {},
	})
	d.OnUnhandled = func(ev Event) { unhandled = append(unhandled, Kind(ev)) }

	d.Dispatch(TagsEvent{Origin: "pipeline", Kind: "title"})
	d.Dispatch(EOSEvent{Origin: "pipeline"})

	assert.Equal(t, uint64(1), d.Dropped())
	assert.Equal(t, []string{"tags"}, unhandled)
}

func TestDispatchObserveSeesEverything(t *testing.T) {
	seen := 0
	d := NewDispatcher(Handlers{})
	d.Observe = func(Event) { seen++ }

	d.Dispatch(EOSEvent{Origin: "pipeline"})
	d.Dispatch(ErrorEvent{Origin: "pipeline"})

	assert.Equal(t, 2, seen)
}

func TestKindLabels(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{ErrorEvent{}, "error"},
		{EOSEvent{}, "eos"},
		{StateChangedEvent{}, "state-changed"},
		{TagsEvent{}, "tags"},
		{ApplicationEvent{}, "application"},
		{PortAnnouncedEvent{}, "port-announced"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.ev))
	}
}
