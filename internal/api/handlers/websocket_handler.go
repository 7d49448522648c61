package handlers

import (
	"sync"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/legal-rag/backend/pkg/logger"
)

// ProgressEvent is one ingestion checkpoint pushed to subscribers.
type ProgressEvent struct {
	ContractID string `json:"contract_id"`
	Stage      string `json:"stage"`
	Percent    int    `json:"percent"`
}

// ProgressHub fans ingestion progress out to websocket subscribers, keyed by
// contract id. Publish never blocks the pipeline; slow subscribers drop
// events.
type ProgressHub struct {
	mu   sync.RWMutex
	subs map[string][]chan ProgressEvent
}

func NewProgressHub() *ProgressHub {
	return &ProgressHub{subs: make(map[string][]chan ProgressEvent)}
}

// Publish delivers an event to every subscriber of contractID.
func (h *ProgressHub) Publish(contractID, stage string, percent int) {
	event := ProgressEvent{ContractID: contractID, Stage: stage, Percent: percent}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[contractID] {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *ProgressHub) subscribe(contractID string) chan ProgressEvent {
	ch := make(chan ProgressEvent, 16)
	h.mu.Lock()
	h.subs[contractID] = append(h.subs[contractID], ch)
	h.mu.Unlock()
	return ch
}

func (h *ProgressHub) unsubscribe(contractID string, ch chan ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[contractID]
	for i, sub := range subs {
		if sub == ch {
			h.subs[contractID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(h.subs[contractID]) == 0 {
		delete(h.subs, contractID)
	}
}

// HandleProgress streams ingestion progress for one contract. The socket
// closes once the pipeline reports 100 percent or the client disconnects.
func (h *ProgressHub) HandleProgress(c *websocket.Conn) {
	contractID := c.Params("id")
	if contractID == "" {
		c.Close()
		return
	}

	logger.Debug("Progress subscriber connected", zap.String("contract_id", contractID))

	ch := h.subscribe(contractID)
	defer func() {
		h.unsubscribe(contractID, ch)
		c.Close()
		logger.Debug("Progress subscriber disconnected", zap.String("contract_id", contractID))
	}()

	// drain client frames so close handshakes are noticed
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event := <-ch:
			if err := c.WriteJSON(event); err != nil {
				return
			}
			if event.Percent >= 100 {
				return
			}
		case <-done:
			return
		}
	}
}
