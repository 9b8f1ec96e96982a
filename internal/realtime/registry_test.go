package realtime

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRegistry() *Registry {
	return NewRegistry(zap.NewNop().Sugar())
}

func newTestClient(userID int64) *Client {
	// pumps are never run in these tests, so no live connection is needed
	return NewClient(zap.NewNop().Sugar(), nil, userID)
}

func TestSendToDeliversToRegistered(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	a := newTestClient(1)
	other := newTestClient(2)

	require.Nil(t, r.Register(a))
	require.Nil(t, r.Register(other))

	env := Envelope{ChatID: 7, MessageID: 11, MessageText: "hi", SentTime: time.Now()}
	require.Equal(t, Delivered, r.SendTo(1, env))

	select {
	case got := <-a.Outbound():
		require.Equal(t, env, got)
	default:
		t.Fatal("envelope not enqueued on the registered connection")
	}

	// nothing leaked onto the other user's connection
	require.Empty(t, other.Outbound())
}

func TestSendToNotConnected(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()

	require.Equal(t, NotConnected, r.SendTo(1, Envelope{MessageID: 1}))
}

func TestRegisterSupersedes(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	a := newTestClient(1)
	b := newTestClient(1)

	require.Nil(t, r.Register(a))
	require.Equal(t, a, r.Register(b))

	require.Equal(t, Delivered, r.SendTo(1, Envelope{MessageID: 1}))
	require.Len(t, b.Outbound(), 1)
	require.Empty(t, a.Outbound())

	// a late unregister from the superseded connection must not clobber b
	r.Unregister(a)
	require.True(t, r.Connected(1))
	require.Equal(t, Delivered, r.SendTo(1, Envelope{MessageID: 2}))
}

func TestUnregisterThenSendTo(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	a := newTestClient(1)

	r.Register(a)
	r.Unregister(a)

	require.Equal(t, NotConnected, r.SendTo(1, Envelope{MessageID: 1}))
	require.Equal(t, 0, r.Len())
}

func TestSendToFullBacklogEvicts(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	a := newTestClient(1)
	r.Register(a)

	for i := 0; i < outboundBacklog; i++ {
		require.Equal(t, Delivered, r.SendTo(1, Envelope{MessageID: int64(i)}))
	}

	// the stalled consumer never drained; the next send fails and evicts
	require.Equal(t, SendFailed, r.SendTo(1, Envelope{MessageID: 99}))
	require.False(t, r.Connected(1))

	select {
	case <-a.done:
	default:
		t.Fatal("evicted client was not closed")
	}
}

func TestSendToClosedClient(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	a := newTestClient(1)
	r.Register(a)
	a.Close()

	require.Equal(t, SendFailed, r.SendTo(1, Envelope{MessageID: 1}))
	require.False(t, r.Connected(1))
}

func TestCloseAll(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	a := newTestClient(1)
	b := newTestClient(2)
	r.Register(a)
	r.Register(b)

	r.CloseAll()

	require.Equal(t, 0, r.Len())
	select {
	case <-a.done:
	default:
		t.Fatal("client was not closed on CloseAll")
	}
}

func TestConcurrentLifecycles(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()

	const users = 32
	const rounds = 50

	var wg sync.WaitGroup
	for u := int64(1); u <= users; u++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()

			for i := 0; i < rounds; i++ {
				c := newTestClient(userID)
				r.Register(c)

				if got := r.SendTo(userID, Envelope{MessageID: int64(i)}); got != Delivered {
					t.Errorf("user %d round %d: SendTo = %v, want delivered", userID, i, got)
				}

				select {
				case got := <-c.Outbound():
					if got.MessageID != int64(i) {
						t.Errorf("user %d round %d: got message %d", userID, i, got.MessageID)
					}
				default:
					t.Errorf("user %d round %d: send reported Delivered but nothing arrived", userID, i)
				}

				r.Unregister(c)
			}
		}(u)
	}
	wg.Wait()

	require.Equal(t, 0, r.Len())
}
