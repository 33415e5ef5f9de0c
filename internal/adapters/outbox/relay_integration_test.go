package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AchilleasB/inrem/pulse-service/internal/adapters/repository"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
	"github.com/AchilleasB/inrem/pulse-service/internal/mocks"
)

var (
	testDB    *sql.DB
	testDBURL string
)

// TestMain wires the relay to a real PostgreSQL when TEST_DB_CONNECTION_STRING
// is set; the broker side is always the mock publisher.
func TestMain(m *testing.M) {
	testDBURL = os.Getenv("TEST_DB_CONNECTION_STRING")
	if testDBURL == "" {
		fmt.Println("Skipping relay integration tests: TEST_DB_CONNECTION_STRING not set")
		os.Exit(m.Run())
	}

	var err error
	testDB, err = sql.Open("postgres", testDBURL)
	if err != nil {
		fmt.Printf("Failed to connect to test database: %v\n", err)
		os.Exit(1)
	}
	if err := testDB.Ping(); err != nil {
		fmt.Printf("Failed to ping test database: %v\n", err)
		os.Exit(1)
	}
	if err := repository.Migrate(context.Background(), testDB); err != nil {
		fmt.Printf("Failed to setup test schema: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	cleanupOutbox(testDB)
	testDB.Close()
	os.Exit(code)
}

func cleanupOutbox(db *sql.DB) {
	_, _ = db.Exec("DELETE FROM outbox_events")
}

func requireDB(t *testing.T) {
	t.Helper()
	if testDB == nil {
		t.Skip("requires TEST_DB_CONNECTION_STRING")
	}
	cleanupOutbox(testDB)
}

func insertOutbox(t *testing.T, eventType string, payload []byte) string {
	t.Helper()
	id := uuid.NewString()
	_, err := testDB.Exec(`
		INSERT INTO outbox_events (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, "pulse_event", uuid.NewString(), eventType, payload, time.Now())
	require.NoError(t, err)
	return id
}

func pulsePayload(t *testing.T, eventType string) []byte {
	t.Helper()
	b, err := json.Marshal(ports.PulseEventMessage{
		EventID: uuid.NewString(), UserID: "user-1", Type: eventType,
		Status: "open", Stage: "soft_check", OccurredAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return b
}

func isProcessed(id string) bool {
	var processedAt sql.NullTime
	if err := testDB.QueryRow("SELECT processed_at FROM outbox_events WHERE id = $1", id).Scan(&processedAt); err != nil {
		return false
	}
	return processedAt.Valid
}

func TestIntegration_RelayProcessesNotifiedEvent(t *testing.T) {
	requireDB(t)
	pub := mocks.NewMockPulseEventPublisher()
	relay := NewRelay(testDB, testDBURL, pub, Options{PollInterval: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go func() { _ = relay.Start(ctx) }()
	time.Sleep(200 * time.Millisecond)

	id := insertOutbox(t, ports.EventPulseOpened, pulsePayload(t, ports.EventPulseOpened))

	assert.Eventually(t, func() bool { return isProcessed(id) }, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, 1, pub.GetPublishCount())
}

func TestIntegration_RelayDrainsBacklogOnStartup(t *testing.T) {
	requireDB(t)
	for i := 0; i < 3; i++ {
		insertOutbox(t, ports.EventPulseEscalated, pulsePayload(t, ports.EventPulseEscalated))
	}
	bad := insertOutbox(t, ports.EventPulseResolved, []byte(`{}`))

	pub := mocks.NewMockPulseEventPublisher()
	relay := NewRelay(testDB, testDBURL, pub, Options{BatchSize: 10, PollInterval: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() { _ = relay.Start(ctx) }()

	assert.Eventually(t, func() bool {
		var n int
		err := testDB.QueryRow("SELECT COUNT(*) FROM outbox_events WHERE processed_at IS NULL").Scan(&n)
		return err == nil && n == 0
	}, 4*time.Second, 50*time.Millisecond)
	assert.Equal(t, 3, pub.GetPublishCount())
	assert.True(t, isProcessed(bad))
}

func TestIntegration_RelayRetriesFailedPublish(t *testing.T) {
	requireDB(t)
	id := insertOutbox(t, ports.EventPulseOpened, pulsePayload(t, ports.EventPulseOpened))

	pub := mocks.NewMockPulseEventPublisher()
	pub.PublishError = fmt.Errorf("broker down")
	relay := NewRelay(testDB, testDBURL, pub, Options{})

	require.NoError(t, relay.processUnprocessedEvents(context.Background()))
	assert.False(t, isProcessed(id))

	pub.PublishError = nil
	require.NoError(t, relay.processUnprocessedEvents(context.Background()))
	assert.True(t, isProcessed(id))
}
