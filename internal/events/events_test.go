package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageTemplateEngine_Render(t *testing.T) {
	engine := NewMessageTemplateEngine()

	tests := []struct {
		name     string
		reason   EventReason
		data     EventData
		expected string
	}{
		{
			name:     "starting with mode",
			reason:   ReasonServerStarting,
			data:     EventData{Server: "tomcat", Mode: "debug"},
			expected: "Server tomcat is starting in debug mode",
		},
		{
			name:     "starting without mode",
			reason:   ReasonServerStarting,
			data:     EventData{Server: "tomcat"},
			expected: "Server tomcat is starting",
		},
		{
			name:     "started with duration",
			reason:   ReasonServerStarted,
			data:     EventData{Server: "tomcat", Duration: 2 * time.Second},
			expected: "Server tomcat started in 2s",
		},
		{
			name:     "start failed with error",
			reason:   ReasonServerStartFailed,
			data:     EventData{Server: "tomcat", Error: "port in use"},
			expected: "Server tomcat failed to start: port in use",
		},
		{
			name:     "start failed without error",
			reason:   ReasonServerStartFailed,
			data:     EventData{Server: "tomcat"},
			expected: "Server tomcat failed to start",
		},
		{
			name:     "deployable state",
			reason:   ReasonDeployableStateChanged,
			data:     EventData{Server: "tomcat", Deployable: "shop", PreviousState: "add", State: "in-sync"},
			expected: "Deployable shop on tomcat changed from add to in-sync",
		},
		{
			name:     "unknown reason",
			reason:   EventReason("Other"),
			data:     EventData{Server: "tomcat"},
			expected: "Event: Other for tomcat",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, engine.Render(tt.reason, tt.data))
		})
	}
}

func TestMessageTemplateEngine_SetTemplate(t *testing.T) {
	engine := NewMessageTemplateEngine()
	engine.SetTemplate(ReasonServerStopped, "{{.Server}} is down")

	tmpl, ok := engine.GetTemplate(ReasonServerStopped)
	require.True(t, ok)
	assert.Equal(t, "{{.Server}} is down", tmpl)
	assert.Equal(t, "a is down", engine.Render(ReasonServerStopped, EventData{Server: "a"}))
}

func TestGetEventType(t *testing.T) {
	assert.Equal(t, EventTypeWarning, getEventType(ReasonServerStartFailed))
	assert.Equal(t, EventTypeWarning, getEventType(ReasonServerPollTimedOut))
	assert.Equal(t, EventTypeNormal, getEventType(ReasonServerStarted))
	assert.Equal(t, EventTypeNormal, getEventType(ReasonServerProcessTerminated))
}

func TestDispatcher_ListenersAndSubscribers(t *testing.T) {
	d := NewDispatcher()

	var mu sync.Mutex
	var got []Event
	d.AddListener(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
	})

	ch, cancel := d.Subscribe(4)
	defer cancel()

	d.Emit(ReasonServerStopped, EventData{Server: "a"})

	mu.Lock()
	require.Len(t, got, 1)
	assert.Equal(t, ReasonServerStopped, got[0].Reason)
	assert.Equal(t, "Server a stopped", got[0].Message)
	mu.Unlock()

	select {
	case e := <-ch:
		assert.Equal(t, EventTypeNormal, e.Type)
		assert.Equal(t, "a", e.Data.Server)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}
}

func TestDispatcher_FullSubscriberDoesNotBlock(t *testing.T) {
	d := NewDispatcher()
	ch, cancel := d.Subscribe(1)

	done := make(chan struct{})
	go func() {
		d.Emit(ReasonServerStarting, EventData{Server: "a"})
		d.Emit(ReasonServerStarted, EventData{Server: "a"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full subscriber")
	}

	e := <-ch
	assert.Equal(t, ReasonServerStarting, e.Reason)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)

	d.Emit(ReasonServerStopped, EventData{Server: "a"})
}

func TestNopSink(t *testing.T) {
	var s Sink = NopSink{}
	s.Emit(ReasonServerStarted, EventData{})
}
