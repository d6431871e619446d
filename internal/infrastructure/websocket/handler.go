package websocket

import (
	"context"
	"net/http"
	"time"

	"dutch-auction-system/internal/domain"
	"dutch-auction-system/internal/services"
	"dutch-auction-system/pkg/logger"
	"dutch-auction-system/pkg/utils"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// WebSocketHandler upgrades viewer connections and accepts bids over
// the socket. Tenant and user identity arrive as query parameters; in
// production both come from the authenticating gateway in front.
type WebSocketHandler struct {
	bidService     *services.BidService
	auctionService *services.AuctionService
	connManager    domain.ConnectionManager
	log            logger.Logger
}

func NewWebSocketHandler(bidService *services.BidService,
	auctionService *services.AuctionService,
	connManager domain.ConnectionManager, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		bidService:     bidService,
		auctionService: auctionService,
		connManager:    connManager,
		log:            log,
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	auctionID := vars["auctionID"]
	tenantID := r.URL.Query().Get("tenant_id")
	userID := r.URL.Query().Get("user_id")

	if tenantID == "" || userID == "" {
		http.Error(w, "tenant_id and user_id required", http.StatusBadRequest)
		return
	}

	auction, err := h.auctionService.GetAuction(r.Context(), tenantID, auctionID)
	if err != nil {
		h.log.Error("Failed to find auction", "error", err, "auction_id", auctionID)
		http.Error(w, "auction not found", http.StatusNotFound)
		return
	}

	if auction.Status.Terminal() {
		http.Error(w, "auction is closed", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	wsConn := NewWebSocketConnection(conn, userID, auctionID, h.log)

	if err := h.connManager.RegisterConnection(userID, auctionID, wsConn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		conn.Close()
		return
	}

	go h.handleMessages(wsConn, tenantID, userID, auctionID)
}

func (h *WebSocketHandler) handleMessages(conn *WebSocketConnection, tenantID, userID, auctionID string) {
	defer func() {
		h.connManager.UnregisterConnection(userID, auctionID)
		conn.Close()
	}()

	for {
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			h.log.Debug("Connection read ended", "user_id", userID, "error", err)
			return
		}

		msgType, ok := msg["type"].(string)
		if !ok {
			continue
		}

		switch msgType {
		case "place_bid":
			h.handleBidMessage(conn, tenantID, userID, auctionID, msg)
		case "current_price":
			h.handlePriceMessage(conn, tenantID, auctionID)
		case "ping":
			conn.Send(map[string]string{"type": "pong"})
		}
	}
}

func (h *WebSocketHandler) handleBidMessage(conn *WebSocketConnection, tenantID, userID, auctionID string, msg map[string]interface{}) {
	amount, ok := msg["amount"].(string)
	if !ok {
		conn.Send(map[string]string{"type": "error", "message": "amount must be a decimal string"})
		return
	}
	currency, ok := msg["currency"].(string)
	if !ok {
		conn.Send(map[string]string{"type": "error", "message": "currency required"})
		return
	}

	bidID, _ := msg["bid_id"].(string)
	if bidID == "" {
		bidID = utils.GenerateID("bid")
	}

	// The notifier pushes the outcome to every connection of this user,
	// so only infrastructure failures need a reply here.
	_, err := h.bidService.PlaceBid(context.Background(), tenantID, auctionID, services.PlaceBidParams{
		BidID:     bidID,
		BidderRef: userID,
		Amount:    amount,
		Currency:  currency,
		PlacedAt:  time.Now().UTC(),
	})
	if err != nil {
		h.log.Error("Failed to place bid", "bid_id", bidID, "error", err)
		conn.Send(map[string]string{"type": "error", "message": "failed to place bid, please retry"})
	}
}

func (h *WebSocketHandler) handlePriceMessage(conn *WebSocketConnection, tenantID, auctionID string) {
	price, err := h.auctionService.CurrentPrice(context.Background(), tenantID, auctionID, time.Now().UTC())
	if err != nil {
		conn.Send(map[string]string{"type": "error", "message": "no item currently on sale"})
		return
	}

	conn.Send(map[string]interface{}{
		"type":       "current_price",
		"auction_id": auctionID,
		"price":      price.Amount().String(),
		"currency":   price.Currency(),
	})
}
