package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func createTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Address = "127.0.0.1:0"
	srv, err := New(cfg, okHandler())
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return srv
}

func TestNewGracefulShutdown_Defaults(t *testing.T) {
	gs := NewGracefulShutdown(createTestServer(t), ShutdownConfig{})

	if gs.timeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", gs.timeout)
	}
	if len(gs.signals) != 2 {
		t.Errorf("Expected 2 default signals, got %d", len(gs.signals))
	}
	if gs.logger == nil {
		t.Error("Expected default logger to be set")
	}
}

func TestNewGracefulShutdown_WithConfig(t *testing.T) {
	logger := zap.NewNop()
	gs := NewGracefulShutdown(createTestServer(t), ShutdownConfig{
		Timeout: 10 * time.Second,
		Signals: []os.Signal{syscall.SIGTERM},
		Logger:  logger,
	})

	if gs.timeout != 10*time.Second {
		t.Errorf("Expected timeout 10s, got %v", gs.timeout)
	}
	if len(gs.signals) != 1 {
		t.Errorf("Expected 1 signal, got %d", len(gs.signals))
	}
	if gs.logger != logger {
		t.Error("Expected custom logger to be set")
	}
}

func TestGracefulShutdown_RunUntilCanceled(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	gs := NewGracefulShutdown(createTestServer(t), ShutdownConfig{
		Timeout: 5 * time.Second,
		Logger:  zap.New(core),
	})

	var mu sync.Mutex
	var order []int
	for i := 0; i < 3; i++ {
		gs.RegisterHook(func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, i)
			if i == 1 {
				return errors.New("hook failed")
			}
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for logs.FilterMessage("server started").Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("server did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != 0 || order[2] != 2 {
		t.Errorf("Expected hooks to run in order, got %v", order)
	}
	if logs.FilterMessage("shutdown hook failed").Len() != 1 {
		t.Error("Expected failed hook to be logged")
	}
	if err := gs.Wait(); err != nil {
		t.Errorf("Wait returned error: %v", err)
	}
}

func TestGracefulShutdown_ShutdownIsIdempotent(t *testing.T) {
	srv := createTestServer(t)
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	go func() {
		if err := srv.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("Serve failed: %v", err)
		}
	}()

	gs := NewGracefulShutdown(srv, ShutdownConfig{Timeout: time.Second})

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gs.Shutdown(); err != nil {
				t.Errorf("Shutdown returned error: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestGracefulShutdown_RunListenError(t *testing.T) {
	busy := createTestServer(t)
	if err := busy.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer busy.listener.Close()

	cfg := DefaultConfig()
	cfg.Address = busy.Addr()
	srv, err := New(cfg, okHandler())
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	gs := NewGracefulShutdown(srv, ShutdownConfig{})
	if err := gs.Run(context.Background()); err == nil {
		t.Error("Expected error when the address is in use")
	}
}
