package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestSafeFileWriterConcurrentWrites(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test_safe_writer.log")

	writer, err := NewSafeFileWriter(testFile, 50*time.Millisecond, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create safe file writer: %v", err)
	}

	var wg sync.WaitGroup
	numGoroutines := 10
	linesPerGoroutine := 100

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < linesPerGoroutine; j++ {
				if _, err := writer.Write([]byte(fmt.Sprintf("Goroutine %d, Line %d\n", id, j))); err != nil {
					t.Errorf("Failed to write line: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	written, _ := writer.Stats()
	if written != uint64(numGoroutines*linesPerGoroutine) {
		t.Errorf("Expected %d writes, got %d", numGoroutines*linesPerGoroutine, written)
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	content, err := os.ReadFile(testFile)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != numGoroutines*linesPerGoroutine {
		t.Errorf("Expected %d lines, got %d", numGoroutines*linesPerGoroutine, len(lines))
	}
}

func TestSafeFileWriterDoubleClose(t *testing.T) {
	writer, err := NewSafeFileWriter(filepath.Join(t.TempDir(), "close.log"), time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create safe file writer: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("First close failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Second close must be a no-op, got: %v", err)
	}
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "service.log")

	log, closeFn, err := New(Options{FilePath: path, FlushInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("Failed to build logger: %v", err)
	}
	log.Named("reconciler").Info("Trade reconciled", zap.String("mint", "So11111111111111111111111111111111111111112"))
	if err := closeFn(); err != nil {
		t.Fatalf("Failed to close log file: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), `"msg":"Trade reconciled"`) {
		t.Errorf("Expected JSON message in log file, got %s", content)
	}
	if !strings.Contains(string(content), `"logger":"reconciler"`) {
		t.Errorf("Expected logger name in log file, got %s", content)
	}
}

func TestShortenAddress(t *testing.T) {
	if got := ShortenAddress("So11111111111111111111111111111111111111112"); got != "So11...1112" {
		t.Errorf("unexpected short address %q", got)
	}
	if got := ShortenAddress("abc"); got != "abc" {
		t.Errorf("short input must be kept, got %q", got)
	}
}
