package sse

import (
	"context"
	"sync"

	"ms-raffle/internal/models"
)

// TicketEventEmitter fans ticket events out to the SSE clients watching a
// raffle. It only lives inside one process; notify.Bridge feeds it events
// published by other instances.
type TicketEventEmitter struct {
	clients map[string][]chan models.TicketEvent
	mu      sync.RWMutex
}

func NewTicketEventEmitter() *TicketEventEmitter {
	return &TicketEventEmitter{
		clients: make(map[string][]chan models.TicketEvent),
	}
}

// Subscribe adds a client to a raffle's events. The channel is closed once
// ctx is done.
func (e *TicketEventEmitter) Subscribe(ctx context.Context, raffleID string) chan models.TicketEvent {
	clientChan := make(chan models.TicketEvent, 10)

	e.mu.Lock()
	e.clients[raffleID] = append(e.clients[raffleID], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(raffleID, clientChan)
	}()

	return clientChan
}

// Emit broadcasts an event to every client of its raffle.
func (e *TicketEventEmitter) Emit(event models.TicketEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, clientChan := range e.clients[event.RaffleID] {
		// Non-blocking send; a slow client misses the event and re-reads on the next one
		select {
		case clientChan <- event:
		default:
		}
	}
}

func (e *TicketEventEmitter) remove(raffleID string, clientChan chan models.TicketEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[raffleID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[raffleID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.clients[raffleID]) == 0 {
		delete(e.clients, raffleID)
	}
}

// ClientCount returns the number of clients currently watching a raffle
func (e *TicketEventEmitter) ClientCount(raffleID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[raffleID])
}
