package notification

import (
	"context"
	"log/slog"

	"beacon/config"
	"beacon/internal/domain/service"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"google.golang.org/api/option"
)

// Firebase limits a multicast message to 500 tokens
const firebaseBatchSize = 500

type firebaseService struct {
	client *messaging.Client
	logger *slog.Logger
}

// Params holds dependencies for the push service, injected by Fx
type Params struct {
	fx.In

	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

// NewPushService returns an FCM backed PushService, or a no-op one when Firebase is not configured
func NewPushService(params Params) (service.PushService, error) {
	cfg := params.Config.Firebase
	if cfg == nil || cfg.CredentialsPath == "" {
		params.Logger.Info("[Push] Firebase not configured, offline push disabled")

		return &noopPushService{logger: params.Logger}, nil
	}

	var fbConfig *firebase.Config
	if cfg.ProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(params.Ctx, fbConfig, option.WithCredentialsFile(cfg.CredentialsPath))
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize Firebase app")
	}

	client, err := app.Messaging(params.Ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get messaging client")
	}

	params.Logger.Info("[Push] Firebase messaging ready", slog.String("project_id", cfg.ProjectID))

	return &firebaseService{
		client: client,
		logger: params.Logger,
	}, nil
}

// SendBatchNotification sends push notifications to any number of device tokens in chunks of 500
func (s *firebaseService) SendBatchNotification(ctx context.Context, tokens []string, title, body string, data map[string]string) (successCount, failureCount int, invalidTokens []string, err error) {
	invalidTokens = make([]string, 0)

	for _, batch := range chunkTokens(tokens, firebaseBatchSize) {
		message := &messaging.MulticastMessage{
			Tokens: batch,
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
			Data: data,
		}

		response, sendErr := s.client.SendEachForMulticast(ctx, message)
		if sendErr != nil {
			return successCount, failureCount, invalidTokens, errors.Wrap(sendErr, "failed to send multicast notification")
		}

		successCount += response.SuccessCount
		failureCount += response.FailureCount

		for idx, sendResponse := range response.Responses {
			if sendResponse.Error == nil {
				continue
			}
			if messaging.IsInvalidArgument(sendResponse.Error) || messaging.IsUnregistered(sendResponse.Error) {
				invalidTokens = append(invalidTokens, batch[idx])
			}
		}
	}

	return successCount, failureCount, invalidTokens, nil
}

func chunkTokens(tokens []string, size int) [][]string {
	if len(tokens) == 0 || size <= 0 {
		return nil
	}

	chunks := make([][]string, 0, (len(tokens)+size-1)/size)
	for start := 0; start < len(tokens); start += size {
		end := min(start+size, len(tokens))
		chunks = append(chunks, tokens[start:end])
	}

	return chunks
}

type noopPushService struct {
	logger *slog.Logger
}

func (s *noopPushService) SendBatchNotification(_ context.Context, tokens []string, title, _ string, _ map[string]string) (int, int, []string, error) {
	s.logger.Debug("[Push] Push disabled, skipping",
		slog.Int("tokens", len(tokens)),
		slog.String("title", title),
	)

	return 0, 0, nil, nil
}
