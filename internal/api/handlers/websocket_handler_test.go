package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressHubPublish(t *testing.T) {
	hub := NewProgressHub()
	ch := hub.subscribe("c1")

	hub.Publish("c1", "Chunking text", 15)

	select {
	case event := <-ch:
		assert.Equal(t, "c1", event.ContractID)
		assert.Equal(t, "Chunking text", event.Stage)
		assert.Equal(t, 15, event.Percent)
	default:
		t.Fatal("expected a buffered event")
	}
}

func TestProgressHubIsolatesContracts(t *testing.T) {
	hub := NewProgressHub()
	ch := hub.subscribe("c1")

	hub.Publish("c2", "Embedding chunks", 25)

	select {
	case <-ch:
		t.Fatal("subscriber received another contract's event")
	default:
	}
}

func TestProgressHubNeverBlocks(t *testing.T) {
	hub := NewProgressHub()
	ch := hub.subscribe("c1")

	// overflow the subscriber buffer; extra events are dropped, not queued
	for i := 0; i < 100; i++ {
		hub.Publish("c1", "Embedding chunks", i)
	}

	require.Len(t, ch, cap(ch))
}

func TestProgressHubUnsubscribe(t *testing.T) {
	hub := NewProgressHub()
	ch1 := hub.subscribe("c1")
	ch2 := hub.subscribe("c1")

	hub.unsubscribe("c1", ch1)
	hub.Publish("c1", "Complete", 100)

	select {
	case <-ch1:
		t.Fatal("unsubscribed channel received an event")
	default:
	}

	select {
	case event := <-ch2:
		assert.Equal(t, 100, event.Percent)
	default:
		t.Fatal("remaining subscriber missed the event")
	}
}
