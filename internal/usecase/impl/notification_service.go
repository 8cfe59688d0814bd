package impl

import (
	"context"
	"log/slog"
	"strings"
	"time"

	deliverycontext "beacon/internal/delivery/context"
	"beacon/internal/domain/constants"
	"beacon/internal/domain/entity"
	domainerrors "beacon/internal/domain/errors"
	"beacon/internal/domain/repository"
	"beacon/internal/domain/service"
	"beacon/internal/usecase"
	"beacon/pkg/protocol"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type notificationService struct {
	notificationRepo repository.NotificationRepository
	emitter          service.NotificationEmitter
	logger           *slog.Logger
}

// NewNotificationService creates a new notification service instance
func NewNotificationService(
	notificationRepo repository.NotificationRepository,
	emitter service.NotificationEmitter,
	logger *slog.Logger,
) usecase.NotificationUsecase {
	return &notificationService{
		notificationRepo: notificationRepo,
		emitter:          emitter,
		logger:           logger,
	}
}

func (s *notificationService) getLogger(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, s.logger)
}

// List returns the user's notifications, newest first
func (s *notificationService) List(ctx context.Context, userID uuid.UUID, filter usecase.ListFilter) ([]*entity.Notification, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = constants.DefaultPageLimit
	}
	limit = min(limit, constants.MaxPageLimit)

	notifications, err := s.notificationRepo.FindByUser(ctx, userID, repository.NotificationFilter{
		Limit:      limit,
		Offset:     max(filter.Offset, 0),
		UnreadOnly: filter.UnreadOnly,
	})
	if err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "list notifications")
	}

	return notifications, nil
}

// Create persists a notification, then pushes it and the new unread count to the owner
func (s *notificationService) Create(ctx context.Context, input *usecase.CreateNotificationInput) (*entity.Notification, error) {
	notification, err := buildNotification(input)
	if err != nil {
		return nil, err
	}

	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		var appErr domainerrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}

		return nil, domainerrors.ErrNotificationCreationFailed.WrapMessage(err.Error())
	}

	s.getLogger(ctx).Info("[Notification] Created",
		slog.String("notification_id", notification.ID.String()),
		slog.String("user_id", notification.UserID.String()),
		slog.String("category", string(notification.Category)),
	)

	env, err := protocol.NewEnvelope(protocol.TypeNotification, notification)
	if err != nil {
		s.getLogger(ctx).Error("[Notification] Failed to encode notification envelope", slog.Any("error", err))

		return notification, nil
	}
	s.emit(ctx, notification.UserID, env)
	s.emitUnreadCount(ctx, notification.UserID)

	return notification, nil
}

func buildNotification(input *usecase.CreateNotificationInput) (*entity.Notification, error) {
	if input == nil || input.UserID == uuid.Nil {
		return nil, domainerrors.ErrValidationFailed.WithDetails("userId is required")
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domainerrors.ErrValidationFailed.WithDetails("title is required")
	}

	notificationType := input.Type
	if notificationType == "" {
		notificationType = entity.NotificationTypeInfo
	}
	if !notificationType.IsValid() {
		return nil, domainerrors.ErrValidationFailed.WithDetails("unknown notification type: " + string(notificationType))
	}

	category := input.Category
	if category == "" {
		category = entity.CategorySystem
	}
	if !category.IsValid() {
		return nil, domainerrors.ErrValidationFailed.WithDetails("unknown notification category: " + string(category))
	}

	return &entity.Notification{
		ID:        uuid.New(),
		UserID:    input.UserID,
		Type:      notificationType,
		Title:     title,
		Message:   input.Message,
		Category:  category,
		Metadata:  input.Metadata,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// MarkAsRead flags one notification as read
func (s *notificationService) MarkAsRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if err := s.notificationRepo.MarkRead(ctx, userID, notificationID); err != nil {
		return mapNotificationError(err, "mark notification as read")
	}

	s.emit(ctx, userID, protocol.MarkRead(notificationID.String()))
	s.emitUnreadCount(ctx, userID)

	return nil
}

// MarkAllAsRead flags every unread notification of the user
func (s *notificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	updated, err := s.notificationRepo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, domainerrors.NewDatabaseExecuteError(err, "mark all notifications as read")
	}

	s.getLogger(ctx).Debug("[Notification] Marked all as read",
		slog.String("user_id", userID.String()),
		slog.Int64("updated", updated),
	)

	s.emit(ctx, userID, protocol.MarkAllRead())
	s.emitUnreadCount(ctx, userID)

	return updated, nil
}

// Delete removes one notification
func (s *notificationService) Delete(ctx context.Context, userID, notificationID uuid.UUID) error {
	if err := s.notificationRepo.Delete(ctx, userID, notificationID); err != nil {
		return mapNotificationError(err, "delete notification")
	}

	s.emit(ctx, userID, protocol.Delete(notificationID.String()))
	s.emitUnreadCount(ctx, userID)

	return nil
}

// UnreadCount returns the number of unread notifications
func (s *notificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := s.notificationRepo.CountUnread(ctx, userID)
	if err != nil {
		return 0, domainerrors.NewDatabaseExecuteError(err, "count unread notifications")
	}

	return count, nil
}

// emit is best effort: the persisted state is already committed.
func (s *notificationService) emit(ctx context.Context, userID uuid.UUID, env protocol.Envelope) {
	if err := s.emitter.Emit(ctx, userID, env); err != nil {
		s.getLogger(ctx).Warn("[Notification] Failed to emit envelope",
			slog.String("user_id", userID.String()),
			slog.String("type", string(env.Type)),
			slog.Any("error", err),
		)
	}
}

func (s *notificationService) emitUnreadCount(ctx context.Context, userID uuid.UUID) {
	count, err := s.notificationRepo.CountUnread(ctx, userID)
	if err != nil {
		s.getLogger(ctx).Warn("[Notification] Failed to count unread for emit",
			slog.String("user_id", userID.String()),
			slog.Any("error", err),
		)

		return
	}

	s.emit(ctx, userID, protocol.Unread(count))
}

func mapNotificationError(err error, op string) error {
	if errors.Is(err, repository.ErrNotificationNotFound) {
		return domainerrors.ErrNotificationNotFound
	}

	return domainerrors.NewDatabaseExecuteError(err, op)
}
