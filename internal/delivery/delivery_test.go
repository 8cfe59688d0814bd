package delivery

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

type deliveryFunc func(ctx context.Context) error

func (f deliveryFunc) Serve(ctx context.Context) error { return f(ctx) }

type recordingShutdowner struct {
	called chan struct{}
}

func (s *recordingShutdowner) Shutdown(...fx.ShutdownOption) error {
	close(s.called)

	return nil
}

func TestStart_ShutsDownWhenServeFails(t *testing.T) {
	shutdowner := &recordingShutdowner{called: make(chan struct{})}
	served := make(chan struct{})

	Start(context.Background(), StartParams{
		Shutdowner: shutdowner,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Deliveries: []Delivery{
			deliveryFunc(func(context.Context) error {
				close(served)

				return nil
			}),
			deliveryFunc(func(context.Context) error { return errors.New("address in use") }),
		},
	})

	select {
	case <-shutdowner.called:
	case <-time.After(time.Second):
		t.Fatal("shutdown was not requested")
	}

	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("healthy delivery was not served")
	}
}
