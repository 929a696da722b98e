package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/thejerf/suture/v4"
)

// HTTPServer is the lifecycle subset of *http.Server.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService runs an HTTP server under supervision.
type HTTPService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

var _ suture.Service = (*HTTPService)(nil)

func NewHTTPService(server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *HTTPService) String() string { return "http-server" }

// JobQueue is the lifecycle subset of the River client.
type JobQueue interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Stopped() <-chan struct{}
}

// QueueService runs the job queue under supervision. Stop waits for
// in-flight jobs up to the shutdown timeout.
type QueueService struct {
	queue           JobQueue
	shutdownTimeout time.Duration
}

var _ suture.Service = (*QueueService)(nil)

func NewQueueService(queue JobQueue, shutdownTimeout time.Duration) *QueueService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &QueueService{queue: queue, shutdownTimeout: shutdownTimeout}
}

func (s *QueueService) Serve(ctx context.Context) error {
	// Shutdown goes through Stop so in-flight jobs can finish.
	if err := s.queue.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("starting job queue: %w", err)
	}

	select {
	case <-s.queue.Stopped():
		return errors.New("job queue stopped unexpectedly")
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.queue.Stop(stopCtx); err != nil {
			return fmt.Errorf("stopping job queue: %w", err)
		}
		return ctx.Err()
	}
}

func (s *QueueService) String() string { return "job-queue" }
