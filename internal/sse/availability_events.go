package sse

import (
	"context"
	"sync"

	"ms-sorteos/internal/models"
)

const clientBuffer = 10

// AvailabilityEmitter fans raffle availability snapshots out to SSE clients.
type AvailabilityEmitter struct {
	// key: raffle id
	clients map[string][]chan models.Availability
	mu      sync.RWMutex
}

func NewAvailabilityEmitter() *AvailabilityEmitter {
	return &AvailabilityEmitter{
		clients: make(map[string][]chan models.Availability),
	}
}

// Subscribe registers a client for a raffle. The channel is closed once ctx is done.
func (e *AvailabilityEmitter) Subscribe(ctx context.Context, raffleID string) <-chan models.Availability {
	clientChan := make(chan models.Availability, clientBuffer)

	e.mu.Lock()
	e.clients[raffleID] = append(e.clients[raffleID], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(raffleID, clientChan)
	}()

	return clientChan
}

// BroadcastAvailability sends a snapshot to every subscriber of the raffle.
// Slow clients miss the update instead of blocking the caller.
func (e *AvailabilityEmitter) BroadcastAvailability(a models.Availability) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, clientChan := range e.clients[a.RaffleID] {
		select {
		case clientChan <- a:
		default:
		}
	}
}

func (e *AvailabilityEmitter) remove(raffleID string, clientChan chan models.Availability) {
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

// ClientCount returns the number of clients currently subscribed to a raffle
func (e *AvailabilityEmitter) ClientCount(raffleID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[raffleID])
}
