package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/errors"
)

// Hub управляет соединениями операторов и адресной отправкой.
type Hub struct {
	clients     map[*Client]bool
	userClients map[int64][]*Client
	register    chan *Client
	unregister  chan *Client
	done        chan struct{}
	mu          sync.RWMutex
	logger      *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		userClients: make(map[int64][]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Run обслуживает регистрацию до отмены ctx, затем закрывает все соединения.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.Send)
			}
			h.clients = make(map[*Client]bool)
			h.userClients = make(map[int64][]*Client)
			h.mu.Unlock()
			h.logger.Info("WebSocket hub остановлен")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.userClients[client.OperatorID] = append(h.userClients[client.OperatorID], client)
			h.mu.Unlock()
			h.logger.Info("Клиент зарегистрирован", zap.Int64("operatorID", client.OperatorID))
		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
	clients := h.userClients[client.OperatorID]
	for i, c := range clients {
		if c == client {
			h.userClients[client.OperatorID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(h.userClients[client.OperatorID]) == 0 {
		delete(h.userClients, client.OperatorID)
	}
	h.logger.Info("Клиент отсоединен", zap.Int64("operatorID", client.OperatorID))
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Connections - число активных соединений оператора.
func (h *Hub) Connections(operatorID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userClients[operatorID])
}

// SendMessageToUser кладёт сообщение во все соединения оператора.
// Нет ни одного соединения - apperrors.ErrTargetGone.
func (h *Hub) SendMessageToUser(operatorID int64, payload interface{}, messageType string) error {
	envelope := Envelope{
		ID:        uuid.NewString(),
		Type:      messageType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	messageBytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("ошибка сериализации сообщения для WebSocket: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.userClients[operatorID]
	if !ok || len(clients) == 0 {
		return apperrors.ErrTargetGone
	}
	for _, client := range clients {
		select {
		case client.Send <- messageBytes:
		default:
			// Медленный клиент: следующая отрисовка всё равно придёт целиком.
			h.logger.Warn("Буфер WebSocket переполнен, сообщение пропущено", zap.Int64("operatorID", operatorID))
		}
	}
	return nil
}
