package influxdb_test

import (
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/doorlock-core/internal/infrastructure/config"
	"github.com/nerrad567/doorlock-core/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for a local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	url := os.Getenv("DOORLOCK_TEST_INFLUXDB_URL")
	if url == "" {
		url = "http://127.0.0.1:8086"
	}
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         os.Getenv("DOORLOCK_TEST_INFLUXDB_TOKEN"),
		Org:           "doorlock",
		Bucket:        "doorlock",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// connectOrSkip returns a live client or skips the test.
func connectOrSkip(t *testing.T) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(t.Context(), testConfig())
	if err != nil {
		t.Skip("InfluxDB not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(t.Context(), cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	_, err := influxdb.Connect(t.Context(), cfg)
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClient_DisconnectedWritesAreDropped(t *testing.T) {
	var client influxdb.Client

	client.RecordRelay("AA:BB:CC:DD:EE:FF", "ok", time.Millisecond, 3)
	client.WriteLockEvent("AA:BB:CC:DD:EE:FF", "registered")
	client.Flush()

	if err := client.HealthCheck(t.Context()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestClient_Writes(t *testing.T) {
	client := connectOrSkip(t)

	var (
		mu       sync.Mutex
		writeErr error
	)
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})

	client.RecordRelay("AA:BB:CC:DD:EE:FF", "ok", 12*time.Millisecond, 42)
	client.RecordRelay("AA:BB:CC:DD:EE:FF", "relay_error", 3*time.Second, 0)
	client.WriteLockEvent("AA:BB:CC:DD:EE:FF", "checkin")
	client.WritePointWithTime("custom", map[string]string{"source": "test"}, map[string]any{"value": 1.5}, time.Now().Add(-time.Hour))
	client.Flush()

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if writeErr != nil {
		t.Errorf("write error = %v", writeErr)
	}
}

func TestClient_HealthCheckAndClose(t *testing.T) {
	client := connectOrSkip(t)

	if err := client.HealthCheck(t.Context()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}
