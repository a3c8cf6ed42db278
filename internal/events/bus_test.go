package events

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPublishFansOutInOrder(t *testing.T) {
	bus := NewBus()
	var got []string
	bus.Subscribe(func(e Event) { got = append(got, "first:"+string(e.Kind)) })
	bus.Subscribe(func(e Event) { got = append(got, "second:"+string(e.Kind)) })

	bus.Publish(Event{Kind: TaskCreated, ID: uuid.New()})
	bus.Publish(Event{Kind: TaskDeleted, ID: uuid.New()})

	assert.Equal(t, []string{
		"first:task.created", "second:task.created",
		"first:task.deleted", "second:task.deleted",
	}, got)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus()
	assert.NotPanics(t, func() {
		bus.Publish(Event{Kind: BackupImported})
	})
}
