package services

import (
	"context"
	"encoding/json"

	"dutch-auction-system/internal/domain"
	"dutch-auction-system/pkg/logger"
)

// EventListener fans published auction events out to the websocket
// viewers of each auction. It is the read side of the outbox: everything
// it sees already committed.
type EventListener struct {
	broadcaster domain.AuctionBroadcaster
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewEventListener(connManager domain.ConnectionManager,
	broadcaster domain.AuctionBroadcaster, log logger.Logger) *EventListener {
	return &EventListener{
		broadcaster: broadcaster,
		connManager: connManager,
		log:         log,
	}
}

func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting event listener")
	return subscriber.Subscribe(ctx, el.handleEvent)
}

func (el *EventListener) handleEvent(entry *domain.OutboxEntry) error {
	switch entry.EventType {
	case domain.EventPriceSnapshot,
		domain.EventAuctionPublished,
		domain.EventItemSoldInSlot,
		domain.EventItemWithdrawn:
		return el.broadcastPayload(entry)

	case domain.EventAuctionEnded, domain.EventAuctionCancelled:
		if err := el.broadcastPayload(entry); err != nil {
			el.log.Error("Failed to broadcast closing event", "auction_id", entry.AuctionID, "error", err)
		}
		return el.connManager.CloseAndUnregisterConnections(entry.AuctionID)

	case domain.EventBidAccepted, domain.EventBidRejected:
		// Bid outcomes reach the bidder directly through the notifier;
		// viewers learn about sales from ItemSoldInSlot.
		return nil
	}

	el.log.Debug("Ignoring event", "type", entry.EventType, "auction_id", entry.AuctionID)
	return nil
}

func (el *EventListener) broadcastPayload(entry *domain.OutboxEntry) error {
	var payload map[string]interface{}
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		return err
	}
	payload["type"] = string(entry.EventType)

	return el.broadcaster.BroadcastToAuction(context.Background(), entry.AuctionID, payload)
}
