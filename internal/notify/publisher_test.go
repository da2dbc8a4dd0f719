package notify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/hangul-tts/internal/core"
	"github.com/book-expert/hangul-tts/internal/hangul"
	"github.com/book-expert/hangul-tts/internal/notify"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNatsPublisher_AudioSaved(t *testing.T) {
	t.Parallel()

	opts := test.DefaultTestOptions
	opts.Port = -1
	natsServer := test.RunServer(&opts)
	defer natsServer.Shutdown()

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	require.NoError(t, err)
	defer natsConnection.Close()

	sub, err := natsConnection.SubscribeSync("hangul.audio.created")
	require.NoError(t, err)
	require.NoError(t, natsConnection.Flush())

	publisher := notify.NewNatsPublisher(natsConnection, "hangul.audio.created")

	file := core.SavedFile{
		Path:       "/tmp/audio/ㅇ/ㅇ_ㅏ_ㄴ.mp3",
		PublicPath: "/audio/ㅇ/ㅇ_ㅏ_ㄴ.mp3",
		Syllable:   "안",
		Components: hangul.Components{Initial: "ㅇ", Medial: "ㅏ", Final: "ㄴ"},
	}

	err = publisher.AudioSaved(context.Background(), "batch-1", file, 6500, hangul.Total)
	require.NoError(t, err)

	msg, err := sub.NextMsg(5 * time.Second)
	require.NoError(t, err)

	var event events.AudioChunkCreatedEvent
	require.NoError(t, json.Unmarshal(msg.Data, &event))

	assert.Equal(t, "batch-1", event.Header.WorkflowID)
	assert.NotEmpty(t, event.Header.EventID)
	assert.Equal(t, file.PublicPath, event.AudioKey)
	assert.Equal(t, 6500, event.PageNumber)
	assert.Equal(t, hangul.Total, event.TotalPages)
}
