package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krchat/sentinel/engine"
)

func testConsumer() *EventConsumer {
	return &EventConsumer{
		Logger: slog.Default(),
		Engine: engine.EngineTestFixture(),
	}
}

func TestHandleFrameMessage(t *testing.T) {
	assert := assert.New(t)
	c := testConsumer()

	joined := time.Now().Add(-24 * time.Hour).Format(time.RFC3339)
	frame := fmt.Sprintf(`{
		"kind": "message",
		"message": {
			"account": {"id": 7, "display_name": "닉네임", "joined_at": %q},
			"message_id": 1,
			"channel_id": 100,
			"content": "친추 받고 방문 보상 G코인 받자"
		}
	}`, joined)

	require.NoError(t, c.HandleFrame(context.Background(), []byte(frame)))

	ds := c.Engine.Notifier.(*engine.MemNotifier).All()
	require.Len(t, ds, 1)
	assert.Equal(engine.KindMessage, ds[0].Kind)
	assert.Equal(engine.TierStrict, ds[0].Tier)
}

func TestHandleFrameJoinAndAvatar(t *testing.T) {
	assert := assert.New(t)
	c := testConsumer()

	join := `{"kind": "join", "account": {"id": 9, "avatar_key": "k1"}}`
	require.NoError(t, c.HandleFrame(context.Background(), []byte(join)))

	// change with no reference hashes loaded stays quiet
	avatar := `{"kind": "avatar", "account": {"id": 9, "avatar_key": "k2", "avatar_url": "https://cdn.example/x.png"}}`
	require.NoError(t, c.HandleFrame(context.Background(), []byte(avatar)))
	assert.Empty(c.Engine.Notifier.(*engine.MemNotifier).All())
}

// dropServer accepts a websocket upgrade and immediately hangs up, driving
// the consumer through its reconnect path.
func dropServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestConsumeOnceNoGoroutineGrowth(t *testing.T) {
	srv := dropServer(t)
	c := testConsumer()
	c.Parallelism = 2
	c.Host = "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx := context.Background()

	// warm up before measuring so pool and runtime goroutines settle
	for i := 0; i < 3; i++ {
		connected, err := c.consumeOnce(ctx)
		require.True(t, connected)
		require.Error(t, err)
	}
	time.Sleep(100 * time.Millisecond)
	before := runtime.NumGoroutine()

	for i := 0; i < 50; i++ {
		_, _ = c.consumeOnce(ctx)
	}
	time.Sleep(200 * time.Millisecond)
	after := runtime.NumGoroutine()
	assert.Less(t, after, before+10, "reconnect cycles must not accumulate goroutines")
}

func TestConsumeOnceDialFailure(t *testing.T) {
	c := testConsumer()
	c.Parallelism = 1
	c.Host = "ws://127.0.0.1:1/events"

	connected, err := c.consumeOnce(context.Background())
	assert.False(t, connected)
	assert.Error(t, err)
}

func TestHandleFrameErrors(t *testing.T) {
	assert := assert.New(t)
	c := testConsumer()

	assert.Error(c.HandleFrame(context.Background(), []byte("{not json")))
	assert.Error(c.HandleFrame(context.Background(), []byte(`{"kind": "message"}`)))
	assert.NoError(c.HandleFrame(context.Background(), []byte(`{"kind": "mystery"}`)))
}
