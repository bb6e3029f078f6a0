package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"dating-app/internal/auth"
	"dating-app/internal/models"
	"dating-app/internal/services"
	"dating-app/pkg/logger"
)

type MessageHandlers struct {
	messageService *services.MessageService
	authService    *auth.Service
}

func NewMessageHandlers(messageService *services.MessageService, authService *auth.Service) *MessageHandlers {
	return &MessageHandlers{
		messageService: messageService,
		authService:    authService,
	}
}

// GetMessages lists the caller's messages by container: inbox (default),
// outbox, or unread.
func (h *MessageHandlers) GetMessages(w http.ResponseWriter, r *http.Request) {
	user, err := h.getUserFromToken(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	container := r.URL.Query().Get("container")
	messages, err := h.messageService.GetMessages(r.Context(), user.Username, container)
	if err != nil {
		logger.Error("List messages error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messages)
}

// CreateMessage persists a message outside the real-time channel. No
// broadcast happens here; a recipient viewing the conversation still gets it
// through the thread endpoint or on their next join.
func (h *MessageHandlers) CreateMessage(w http.ResponseWriter, r *http.Request) {
	user, err := h.getUserFromToken(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	result, err := h.messageService.SendMessage(r.Context(), user.Username, &req)
	if err != nil {
		logger.Error("Create message error: %v", err)
		http.Error(w, sendErrorMessage(err), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(result.Message)
}

// GetThread returns the full conversation with another user and marks the
// caller's unread messages in it as read.
func (h *MessageHandlers) GetThread(w http.ResponseWriter, r *http.Request) {
	user, err := h.getUserFromToken(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	otherUser := strings.TrimPrefix(r.URL.Path, "/messages/thread/")
	if otherUser == "" || strings.Contains(otherUser, "/") {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}

	messages, err := h.messageService.GetThread(r.Context(), user.Username, otherUser)
	if err != nil {
		logger.Error("Get thread error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messages)
}

func (h *MessageHandlers) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	user, err := h.getUserFromToken(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := h.getMessageIDFromPath(r)
	if err != nil {
		http.Error(w, "invalid message ID", http.StatusBadRequest)
		return
	}

	if err := h.messageService.DeleteMessage(r.Context(), user.Username, id); err != nil {
		logger.Error("Delete message error: %v", err)
		switch {
		case errors.Is(err, services.ErrMessageNotFound):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, services.ErrForbidden):
			http.Error(w, err.Error(), http.StatusForbidden)
		default:
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("message deleted"))
}

func (h *MessageHandlers) getUserFromToken(r *http.Request) (*models.User, error) {
	tokenStr := bearerToken(r)
	if tokenStr == "" {
		return nil, fmt.Errorf("missing token")
	}

	return h.authService.GetUserFromToken(r.Context(), tokenStr)
}

func (h *MessageHandlers) getMessageIDFromPath(r *http.Request) (int, error) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 3 {
		return 0, fmt.Errorf("invalid path")
	}

	return strconv.Atoi(parts[2])
}

// bearerToken pulls the JWT from the Authorization header, falling back to
// the token query parameter used by the websocket endpoints.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func sendErrorMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrSelfMessage),
		errors.Is(err, services.ErrUserNotFound):
		return err.Error()
	default:
		return "failed to send message"
	}
}
