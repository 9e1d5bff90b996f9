package routingtable

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacdonaldsmith/meshchat-go/pkg/meshnode"
	"github.com/rmacdonaldsmith/meshchat-go/pkg/routingtable"
)

func subscriberIDs(subs []routingtable.Subscriber) []string {
	ids := make([]string, len(subs))
	for i, s := range subs {
		ids[i] = s.ID()
	}
	return ids
}

// TestRoutingTable_Subscribe tests basic subscription and lookup
func TestRoutingTable_Subscribe(t *testing.T) {
	rt := NewInMemoryRoutingTable()
	defer rt.Close()
	ctx := context.Background()

	all := routingtable.NewChannelSubscriber("all", routingtable.LocalClient, 8)
	messages := routingtable.NewChannelSubscriber("messages", routingtable.HTTPStream, 8)

	require.NoError(t, rt.Subscribe(ctx, "*", all))
	require.NoError(t, rt.Subscribe(ctx, "message", messages))

	subs, err := rt.GetSubscribers(ctx, meshnode.EventMessage)
	require.NoError(t, err)
	assert.Equal(t, []string{"all", "messages"}, subscriberIDs(subs))

	subs, err = rt.GetSubscribers(ctx, meshnode.EventConnect)
	require.NoError(t, err)
	assert.Equal(t, []string{"all"}, subscriberIDs(subs))

	count, err := rt.GetSubscriberCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRoutingTable_SubscribeValidation(t *testing.T) {
	rt := NewInMemoryRoutingTable()
	defer rt.Close()
	ctx := context.Background()

	assert.ErrorIs(t, rt.Subscribe(ctx, "*", nil), ErrNilSubscriber)
	assert.ErrorIs(t, rt.Subscribe(ctx, "*", routingtable.NewChannelSubscriber(" ", routingtable.LocalClient, 1)), ErrEmptySubscriberID)
	assert.ErrorIs(t, rt.Subscribe(ctx, "orders.*", routingtable.NewChannelSubscriber("x", routingtable.LocalClient, 1)), routingtable.ErrInvalidPattern)
}

func TestRoutingTable_SubscribeTwiceDeduplicates(t *testing.T) {
	rt := NewInMemoryRoutingTable()
	defer rt.Close()
	ctx := context.Background()

	sub := routingtable.NewChannelSubscriber("dup", routingtable.LocalClient, 8)
	require.NoError(t, rt.Subscribe(ctx, "*", sub))
	require.NoError(t, rt.Subscribe(ctx, "", sub))
	require.NoError(t, rt.Subscribe(ctx, "message", sub))

	// One delivery even though two patterns match
	assert.Equal(t, 1, rt.Dispatch(meshnode.Event{Kind: meshnode.EventMessage}))
	assert.Len(t, sub.Events(), 1)

	subs, err := rt.GetAllSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "*", subs[0].Pattern)
	assert.Equal(t, "message", subs[1].Pattern)
}

func TestRoutingTable_Unsubscribe(t *testing.T) {
	rt := NewInMemoryRoutingTable()
	defer rt.Close()
	ctx := context.Background()

	sub := routingtable.NewChannelSubscriber("s", routingtable.LocalClient, 8)
	require.NoError(t, rt.Subscribe(ctx, "message", sub))
	require.NoError(t, rt.Subscribe(ctx, "error", sub))

	require.NoError(t, rt.Unsubscribe(ctx, "message", "s"))
	require.NoError(t, rt.Unsubscribe(ctx, "message", "never-subscribed"))

	assert.Zero(t, rt.Dispatch(meshnode.Event{Kind: meshnode.EventMessage}))
	assert.Equal(t, 1, rt.Dispatch(meshnode.Event{Kind: meshnode.EventError}))

	require.NoError(t, rt.UnsubscribeAll(ctx, "s"))
	count, err := rt.GetSubscriberCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRoutingTable_DispatchDropsWhenFull(t *testing.T) {
	rt := NewInMemoryRoutingTable()
	defer rt.Close()

	slow := routingtable.NewChannelSubscriber("slow", routingtable.GRPCStream, 1)
	require.NoError(t, rt.Subscribe(context.Background(), "*", slow))

	assert.Equal(t, 1, rt.Dispatch(meshnode.Event{Kind: meshnode.EventMessage, Payload: "1"}))
	assert.Zero(t, rt.Dispatch(meshnode.Event{Kind: meshnode.EventMessage, Payload: "2"}))
	assert.Equal(t, int64(1), slow.Dropped())
	assert.Equal(t, "1", (<-slow.Events()).Payload)
}

func TestRoutingTable_AsObserver(t *testing.T) {
	rt := NewInMemoryRoutingTable()
	defer rt.Close()

	sub := routingtable.NewChannelSubscriber("obs", routingtable.LocalClient, 8)
	require.NoError(t, rt.Subscribe(context.Background(), "disconnect", sub))

	var observer meshnode.Observer = rt
	observer.HandleEvent(meshnode.Event{Kind: meshnode.EventDisconnect, Payload: ""})
	observer.HandleEvent(meshnode.Event{Kind: meshnode.EventMessage, Payload: "ignored"})

	require.Len(t, sub.Events(), 1)
	assert.Equal(t, meshnode.EventDisconnect, (<-sub.Events()).Kind)
}

func TestRoutingTable_Close(t *testing.T) {
	rt := NewInMemoryRoutingTable()
	ctx := context.Background()

	sub := routingtable.NewChannelSubscriber("s", routingtable.LocalClient, 8)
	require.NoError(t, rt.Subscribe(ctx, "*", sub))

	require.NoError(t, rt.Close())
	require.NoError(t, rt.Close())

	assert.Zero(t, rt.Dispatch(meshnode.Event{Kind: meshnode.EventMessage}))
	assert.ErrorIs(t, rt.Subscribe(ctx, "*", sub), ErrClosed)
}

func TestRoutingTable_ContextCancelled(t *testing.T) {
	rt := NewInMemoryRoutingTable()
	defer rt.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sub := routingtable.NewChannelSubscriber("s", routingtable.LocalClient, 1)
	assert.ErrorIs(t, rt.Subscribe(ctx, "*", sub), context.Canceled)
	assert.ErrorIs(t, rt.Unsubscribe(ctx, "*", "s"), context.Canceled)
	_, err := rt.GetSubscribers(ctx, meshnode.EventMessage)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = rt.GetAllSubscriptions(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRoutingTable_ConcurrentDispatch(t *testing.T) {
	rt := NewInMemoryRoutingTable()
	defer rt.Close()
	ctx := context.Background()

	sub := routingtable.NewChannelSubscriber("s", routingtable.LocalClient, 1000)
	require.NoError(t, rt.Subscribe(ctx, "*", sub))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				rt.Dispatch(meshnode.Event{Kind: meshnode.EventMessage})
			}
		}()
		go func() {
			defer wg.Done()
			other := routingtable.NewChannelSubscriber("other", routingtable.LocalClient, 1)
			for i := 0; i < 100; i++ {
				_ = rt.Subscribe(ctx, "error", other)
				_ = rt.UnsubscribeAll(ctx, "other")
			}
		}()
	}
	wg.Wait()

	assert.Len(t, sub.Events(), 400)
}
