package server

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collablearn/relay/internal/membership"
)

// erroringOracle simulates an unreachable membership store.
type erroringOracle struct{}

func (erroringOracle) IsMember(context.Context, string, string) (bool, error) {
	return false, errors.New("membership store unreachable")
}

func joinEvent(t *testing.T, groupID string) []byte {
	t.Helper()
	raw, err := json.Marshal(InboundEvent{Event: EventJoinGroup, GroupID: groupID})
	require.NoError(t, err)
	return raw
}

func sendEvent(t *testing.T, message string) []byte {
	t.Helper()
	raw, err := json.Marshal(InboundEvent{Event: EventSendMessage, Message: json.RawMessage(`"` + message + `"`)})
	require.NoError(t, err)
	return raw
}

func TestNewClientRequiresIdentity(t *testing.T) {
	hub := NewHub(nil)
	assert.Panics(t, func() {
		NewClient(nil, hub, membership.NewInMemoryOracle(), "", "127.0.0.1:12345")
	})
}

func TestMalformedPayloadIsRecoverable(t *testing.T) {
	hub := NewHub(nil)
	client := newTestClient(hub, "u1")
	hub.addClient(client)

	keepGoing := client.handleEvent([]byte("this is not json"))
	assert.True(t, keepGoing, "a protocol error must not terminate the session")
	assert.Equal(t, "Invalid message format", decodeError(t, recvFrame(t, client)))
	assert.Equal(t, 1, hub.ClientCount())
}

func TestUnknownEventIgnored(t *testing.T) {
	hub := NewHub(nil)
	client := newTestClient(hub, "u1")
	hub.addClient(client)

	keepGoing := client.handleEvent([]byte(`{"event":"startVideoCall"}`))
	assert.True(t, keepGoing)
	assert.Empty(t, client.send)
	assert.Equal(t, 1, hub.ClientCount())
}

func TestSendBeforeJoinRejected(t *testing.T) {
	hub := NewHub(nil)
	client := newTestClient(hub, "u1")
	hub.addClient(client)

	keepGoing := client.handleEvent(sendEvent(t, "hi"))
	assert.True(t, keepGoing, "sending before joining must not terminate the session")
	assert.Equal(t, "You must join a group first", decodeError(t, recvFrame(t, client)))
	assert.Equal(t, 1, hub.ClientCount())
}

func TestJoinDeniedIsFatal(t *testing.T) {
	hub := NewHub(nil)
	oracle := membership.NewInMemoryOracle()
	oracle.Add("study-42", "member-user")

	client := NewClient(nil, hub, oracle, "outsider", "127.0.0.1:12345")
	hub.addClient(client)

	keepGoing := client.handleEvent(joinEvent(t, "study-42"))
	assert.False(t, keepGoing, "failed membership is fatal to the session")
	assert.Equal(t, "Access denied: Not a group member", decodeError(t, recvFrame(t, client)))

	_, open := <-client.send
	assert.False(t, open, "denied client should be closed after the error frame")
	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, 0, hub.GroupSize("study-42"))
}

func TestJoinOracleFailureTreatedAsDenied(t *testing.T) {
	hub := NewHub(nil)
	client := NewClient(nil, hub, erroringOracle{}, "u1", "127.0.0.1:12345")
	hub.addClient(client)

	keepGoing := client.handleEvent(joinEvent(t, "study-42"))
	assert.False(t, keepGoing)
	assert.Equal(t, "Access denied: Not a group member", decodeError(t, recvFrame(t, client)))
	assert.Equal(t, 0, hub.ClientCount())
}

func TestJoinBindsAndRebinds(t *testing.T) {
	hub := NewHub(nil)
	oracle := membership.NewInMemoryOracle()
	oracle.Add("study-42", "u1")
	oracle.Add("study-43", "u1")

	client := NewClient(nil, hub, oracle, "u1", "127.0.0.1:12345")
	hub.addClient(client)

	require.True(t, client.handleEvent(joinEvent(t, "study-42")))
	assert.Equal(t, "study-42", hub.boundGroup(client))

	require.True(t, client.handleEvent(joinEvent(t, "study-43")))
	assert.Equal(t, "study-43", hub.boundGroup(client))
	assert.Equal(t, 0, hub.GroupSize("study-42"))
}

func TestDeniedJoinNeverBindsLater(t *testing.T) {
	hub := NewHub(nil)
	oracle := membership.NewInMemoryOracle()

	client := NewClient(nil, hub, oracle, "u1", "127.0.0.1:12345")
	hub.addClient(client)

	require.False(t, client.handleEvent(joinEvent(t, "study-42")))

	// Membership granted after the failed join must not retroactively bind.
	oracle.Add("study-42", "u1")
	assert.Equal(t, 0, hub.GroupSize("study-42"))
	assert.Equal(t, "", hub.boundGroup(client))
}

func TestSendAfterJoinBroadcastsToGroup(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer func() {
		require.NoError(t, hub.Shutdown(2*time.Second))
	}()

	oracle := membership.NewInMemoryOracle()
	oracle.Add("study-42", "u1")
	oracle.Add("study-42", "u3")

	sender := NewClient(nil, hub, oracle, "u1", "127.0.0.1:1001")
	receiver := NewClient(nil, hub, oracle, "u3", "127.0.0.1:1003")
	hub.addClient(sender)
	hub.addClient(receiver)

	require.True(t, sender.handleEvent(joinEvent(t, "study-42")))
	require.True(t, receiver.handleEvent(joinEvent(t, "study-42")))

	require.True(t, sender.handleEvent(sendEvent(t, "hi")))

	var delivered OutboundMessage
	require.NoError(t, json.Unmarshal(recvFrame(t, receiver), &delivered))
	assert.Equal(t, "u1", delivered.Sender)
	assert.Equal(t, json.RawMessage(`"hi"`), delivered.Message)

	assert.Empty(t, sender.send, "sender must not receive its own message back")
}

func TestRateLimitDiscardsExcessMessages(t *testing.T) {
	limiter := newRateLimiter(2, time.Hour)

	assert.True(t, limiter.allow())
	assert.True(t, limiter.allow())
	assert.False(t, limiter.allow(), "bucket exhausted, message should be discarded")
}
