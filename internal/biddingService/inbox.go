package bidding

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"auction-engine/internal/notify"
	"context"
	"fmt"
	"strings"
	"time"
)

// GetMessages returns the user's inbox, newest first
func (s *BiddingService) GetMessages(ctx context.Context, userID string) ([]models.Message, error) {
	return s.messagesFor(ctx, userID, false)
}

// GetUnreadMessages returns the user's unread messages, newest first
func (s *BiddingService) GetUnreadMessages(ctx context.Context, userID string) ([]models.Message, error) {
	return s.messagesFor(ctx, userID, true)
}

func (s *BiddingService) messagesFor(ctx context.Context, userID string, unreadOnly bool) ([]models.Message, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidMessage)
	}
	msgs, err := s.repo.GetMessagesByRecipient(ctx, userID, unreadOnly)
	if err != nil {
		return nil, storeErr("get messages", err)
	}
	return msgs, nil
}

// MarkMessageRead flags a message as read. Only its recipient may do so.
func (s *BiddingService) MarkMessageRead(ctx context.Context, messageID, userID string) (models.Message, error) {
	msg, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, storeErr("get message", err)
	}
	if msg.RecipientID != userID {
		return models.Message{}, fmt.Errorf("service: %w - message %s belongs to another user", biddingerrors.ErrForbidden, messageID)
	}
	if msg.Read {
		return msg, nil
	}

	msg, err = s.repo.MarkMessageRead(ctx, messageID)
	if err != nil {
		return models.Message{}, storeErr("mark message read", err)
	}
	return msg, nil
}

// SendMessage delivers a user authored message and pushes a notice to the recipient
func (s *BiddingService) SendMessage(ctx context.Context, senderID string, req models.NewMessage, now time.Time) (models.Message, error) {
	content := strings.TrimSpace(req.Content)
	if senderID == "" || req.RecipientID == "" || content == "" {
		return models.Message{}, fmt.Errorf("service: %w - sender, recipient and content are required", biddingerrors.ErrInvalidMessage)
	}
	msgType := req.Type
	if msgType == "" {
		msgType = models.MessageSystemNotification
	}
	if !msgType.Valid() {
		return models.Message{}, fmt.Errorf("service: %w - unknown message type %q", biddingerrors.ErrInvalidMessage, msgType)
	}

	if _, err := s.repo.GetUser(ctx, req.RecipientID); err != nil {
		return models.Message{}, storeErr("get recipient", err)
	}

	msg, err := s.repo.SaveMessage(ctx, models.Message{
		SenderID:    senderID,
		RecipientID: req.RecipientID,
		Content:     content,
		AuctionID:   req.AuctionID,
		Type:        msgType,
		CreatedAt:   now,
	})
	if err != nil {
		return models.Message{}, storeErr("save message", err)
	}

	s.publishToUser(msg.RecipientID, notify.UserNotice{
		Type:      notify.TypeNewMessage,
		AuctionID: msg.AuctionID,
		MessageID: msg.MessageID,
		Text:      msg.Content,
	})
	return msg, nil
}

// SyncProfile records the identity presented by the identity provider. New users start active;
// existing users keep their active flag and creation time.
func (s *BiddingService) SyncProfile(ctx context.Context, identity models.User, now time.Time) (models.User, error) {
	name := strings.TrimSpace(identity.Name)
	if identity.UserID == "" || name == "" {
		return models.User{}, fmt.Errorf("service: %w - user ID and name are required", biddingerrors.ErrInvalidUser)
	}

	roles := identity.Roles
	if len(roles) == 0 {
		roles = []string{models.RoleUser}
	}
	user := models.User{
		UserID:    identity.UserID,
		Name:      name,
		Email:     identity.Email,
		Roles:     roles,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	saved, err := s.repo.SaveUser(ctx, user)
	if err != nil {
		return models.User{}, storeErr("save user", err)
	}
	return saved, nil
}

// GetProfile returns a single user
func (s *BiddingService) GetProfile(ctx context.Context, userID string) (models.User, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return models.User{}, storeErr("get user", err)
	}
	return user, nil
}

// ListUsers returns every known user
func (s *BiddingService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, storeErr("list users", err)
	}
	return users, nil
}

// ToggleUserStatus flips the active flag. Inactive users cannot bid.
func (s *BiddingService) ToggleUserStatus(ctx context.Context, userID string, now time.Time) (models.User, error) {
	user, err := s.repo.ToggleUserActive(ctx, userID, now)
	if err != nil {
		return models.User{}, storeErr("toggle user", err)
	}
	return user, nil
}
