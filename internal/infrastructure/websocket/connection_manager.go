package websocket

import (
	"encoding/json"
	"sync"

	"dutch-auction-system/internal/domain"
	"dutch-auction-system/pkg/logger"
)

type ConnectionManager struct {
	connections map[string]map[string]domain.WebSocketConnection // auctionID -> userID -> connection
	userConns   map[string][]domain.WebSocketConnection          // userID -> connections
	mutex       sync.RWMutex
	log         logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]map[string]domain.WebSocketConnection),
		userConns:   make(map[string][]domain.WebSocketConnection),
		log:         log,
	}
}

func (cm *ConnectionManager) RegisterConnection(userID, auctionID string, conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.connections[auctionID] == nil {
		cm.connections[auctionID] = make(map[string]domain.WebSocketConnection)
	}
	cm.connections[auctionID][userID] = conn

	cm.userConns[userID] = append(cm.userConns[userID], conn)

	cm.log.Debug("Connection registered", "user_id", userID, "auction_id", auctionID)
	return nil
}

func (cm *ConnectionManager) UnregisterConnection(userID, auctionID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	cm.removeLocked(userID, auctionID)

	cm.log.Debug("Connection unregistered", "user_id", userID, "auction_id", auctionID)
	return nil
}

func (cm *ConnectionManager) CloseAndUnregisterConnections(auctionID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	auctionConns, exists := cm.connections[auctionID]
	if !exists {
		return nil
	}

	for userID, conn := range auctionConns {
		if err := conn.Close(); err != nil {
			cm.log.Error("Failed to close connection", "user_id", userID,
				"auction_id", auctionID, "error", err)
		}
		cm.removeUserConnLocked(userID, auctionID)
	}
	delete(cm.connections, auctionID)

	cm.log.Info("Connections closed for auction", "auction_id", auctionID)
	return nil
}

func (cm *ConnectionManager) GetConnectionsForAuction(auctionID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	var connections []domain.WebSocketConnection
	for _, conn := range cm.connections[auctionID] {
		connections = append(connections, conn)
	}
	return connections
}

func (cm *ConnectionManager) BroadcastToAuction(auctionID string, message interface{}) error {
	connections := cm.GetConnectionsForAuction(auctionID)

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	for _, conn := range connections {
		if err := conn.Send(messageBytes); err != nil {
			cm.log.Error("Failed to send message", "user_id", conn.UserID(), "error", err)
			// Continue to other connections
		}
	}

	return nil
}

func (cm *ConnectionManager) NotifyUser(userID string, message interface{}) error {
	cm.mutex.RLock()
	connections := append([]domain.WebSocketConnection(nil), cm.userConns[userID]...)
	cm.mutex.RUnlock()

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	for _, conn := range connections {
		if err := conn.Send(messageBytes); err != nil {
			cm.log.Error("Failed to send message", "user_id", userID, "error", err)
		}
	}

	return nil
}

func (cm *ConnectionManager) removeLocked(userID, auctionID string) {
	if auctionConns, exists := cm.connections[auctionID]; exists {
		delete(auctionConns, userID)
		if len(auctionConns) == 0 {
			delete(cm.connections, auctionID)
		}
	}
	cm.removeUserConnLocked(userID, auctionID)
}

func (cm *ConnectionManager) removeUserConnLocked(userID, auctionID string) {
	userConnections, exists := cm.userConns[userID]
	if !exists {
		return
	}

	var remaining []domain.WebSocketConnection
	for _, conn := range userConnections {
		if conn.AuctionID() != auctionID {
			remaining = append(remaining, conn)
		}
	}

	if len(remaining) == 0 {
		delete(cm.userConns, userID)
	} else {
		cm.userConns[userID] = remaining
	}
}
