package handlers

import (
	"net/http"

	"dutch-auction-system/internal/infrastructure/websocket"
	"dutch-auction-system/internal/services"
	"dutch-auction-system/pkg/logger"
)

type WebSocketHandlers struct {
	wsHandler *websocket.WebSocketHandler
}

func NewWebSocketHandlers(bidService *services.BidService, auctionService *services.AuctionService,
	connManager *websocket.ConnectionManager, log logger.Logger) *WebSocketHandlers {
	wsHandler := websocket.NewWebSocketHandler(bidService, auctionService, connManager, log)
	return &WebSocketHandlers{
		wsHandler: wsHandler,
	}
}

func (h *WebSocketHandlers) HandleConnection(w http.ResponseWriter, r *http.Request) {
	h.wsHandler.HandleConnection(w, r)
}
