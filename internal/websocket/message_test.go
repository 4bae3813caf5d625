package websocket

import (
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageToJSON(t *testing.T) {
	msg := Message{
		Type: MessageTypeAlert,
		Data: map[string]interface{}{
			"message": "An event timeout has occurred!",
			"matched": 0,
		},
	}

	var decoded Message
	require.NoError(t, json.Unmarshal(msg.ToJSON(), &decoded))

	assert.Equal(t, MessageTypeAlert, decoded.Type)
	assert.Equal(t, "An event timeout has occurred!", decoded.Data["message"])
	assert.False(t, decoded.Timestamp.IsZero())
}

func TestBroadcastMessageQueues(t *testing.T) {
	hub := NewHub(logrus.New())

	hub.BroadcastMessage(MessageTypeDiagnostic, map[string]interface{}{
		"message": "UTC start time reached, monitoring for matches",
	})

	select {
	case raw := <-hub.broadcast:
		var decoded Message
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Equal(t, MessageTypeDiagnostic, decoded.Type)
	default:
		t.Fatal("expected a queued broadcast")
	}
}

func TestBroadcastMessageWrapsScalars(t *testing.T) {
	hub := NewHub(logrus.New())

	hub.BroadcastMessage(MessageTypeStatus, "armed")

	raw := <-hub.broadcast
	var decoded Message
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "armed", decoded.Data["data"])
}
