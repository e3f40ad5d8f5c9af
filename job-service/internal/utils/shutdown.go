package utils

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

type ShutdownManager struct {
	cancelFunc    context.CancelFunc
	shutdownTasks []namedTask
	mu            sync.Mutex
	logger        *logrus.Logger
	exit          func(code int)
}

type namedTask struct {
	name string
	fn   func(context.Context) error
}

func NewShutdownManager(ctx context.Context, logger *logrus.Logger) (context.Context, *ShutdownManager) {
	ctx, cancel := context.WithCancel(ctx)
	manager := &ShutdownManager{
		cancelFunc: cancel,
		logger:     logger,
		exit:       os.Exit,
	}
	return ctx, manager
}

// Register adds a task; tasks run in reverse registration order so the HTTP
// server stops before the stores it depends on are closed.
func (sm *ShutdownManager) Register(name string, task func(context.Context) error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.shutdownTasks = append(sm.shutdownTasks, namedTask{name: name, fn: task})
}

func (sm *ShutdownManager) StartListening() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		sm.logger.WithField("signal", sig.String()).Info("shutdown signal received")
		sm.Shutdown(15 * time.Second)
		sm.exit(0)
	}()
}

// Shutdown cancels the root context and runs every registered task.
func (sm *ShutdownManager) Shutdown(timeout time.Duration) {
	sm.cancelFunc()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sm.mu.Lock()
	defer sm.mu.Unlock()
	for i := len(sm.shutdownTasks) - 1; i >= 0; i-- {
		task := sm.shutdownTasks[i]
		if err := task.fn(ctx); err != nil {
			LogError(sm.logger, "utils", "Shutdown", task.name, nil, err)
			continue
		}
		sm.logger.WithField("task", task.name).Info("shutdown task complete")
	}
	sm.logger.Info("graceful shutdown complete")
}
