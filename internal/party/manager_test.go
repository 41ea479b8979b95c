package party

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjwdenbesten/Graphical/internal/graph"
	"github.com/bjwdenbesten/Graphical/internal/mutex"
	"github.com/bjwdenbesten/Graphical/internal/protocol"
)

type emitted struct {
	event string
	data  any
}

type fakeConn struct {
	mu      sync.Mutex
	id      string
	partyID string
	events  []emitted
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Emit(event string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, emitted{event: event, data: data})
}

func (c *fakeConn) PartyID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.partyID
}

func (c *fakeConn) BindParty(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partyID = id
}

func (c *fakeConn) received(event string) []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []any
	for _, e := range c.events {
		if e.event == event {
			out = append(out, e.data)
		}
	}
	return out
}

func (c *fakeConn) last(event string) (any, bool) {
	all := c.received(event)
	if len(all) == 0 {
		return nil, false
	}
	return all[len(all)-1], true
}

// fakeRooms is an in-memory Rooms so manager tests don't need live
// websockets; broadcasts land on each member's fakeConn.
type fakeRooms struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Conn
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{rooms: make(map[string]map[string]Conn)}
}

func (r *fakeRooms) Join(roomID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[roomID] == nil {
		r.rooms[roomID] = make(map[string]Conn)
	}
	r.rooms[roomID][c.ID()] = c
}

func (r *fakeRooms) Leave(roomID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if members, ok := r.rooms[roomID]; ok {
		delete(members, c.ID())
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}
}

func (r *fakeRooms) Size(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}

func (r *fakeRooms) Exists(roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID]
	return ok
}

func (r *fakeRooms) Broadcast(roomID string, event string, data any) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.rooms[roomID] {
		c.Emit(event, data)
	}
}

func newTestManager(t *testing.T, opts mutex.Options) (*Manager, *fakeRooms, *RedisStore) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewRedisStore(client)
	rooms := newFakeRooms()
	return NewManager(store, mutex.NewRedisMutex(client, opts), rooms), rooms, store
}

func createTestParty(t *testing.T, m *Manager, host *fakeConn, p protocol.CreateParty) string {
	t.Helper()

	m.CreateParty(context.Background(), host, p)
	data, ok := host.last(protocol.EventPartyID)
	require.True(t, ok, "host never received party-id")
	id, ok := data.(string)
	require.True(t, ok)
	return id
}

func TestCreatePartyEmitsIDToCreatorOnly(t *testing.T) {
	m, rooms, store := newTestManager(t, mutex.Options{})
	host := newFakeConn("host")

	id := createTestParty(t, m, host, protocol.CreateParty{NodeID: 3, EdgeID: 1})

	assert.Equal(t, id, host.PartyID())
	assert.Equal(t, 1, rooms.Size(id))

	pd, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "host", pd.Host)
	assert.Equal(t, []string{"host"}, pd.Members)
	assert.Equal(t, 1, pd.NumConnected)
	assert.Equal(t, 3, pd.NodeID)
}

func TestCreatePartyRejectedWhenAlreadyBound(t *testing.T) {
	m, _, _ := newTestManager(t, mutex.Options{})
	host := newFakeConn("host")
	host.BindParty("some-party")

	m.CreateParty(context.Background(), host, protocol.CreateParty{})

	data, ok := host.last(protocol.EventCreatePartyResult)
	require.True(t, ok)
	assert.Equal(t, protocol.Result{Res: protocol.ResAlreadyInParty}, data)
	assert.Empty(t, host.received(protocol.EventPartyID))
}

func TestCreatePartyRejectsOversizedGraph(t *testing.T) {
	m, rooms, _ := newTestManager(t, mutex.Options{})
	host := newFakeConn("host")

	nodes := make([]graph.Node, graph.MaxNodes+1)
	for i := range nodes {
		nodes[i] = graph.Node{ID: i, Label: i + 1}
	}

	m.CreateParty(context.Background(), host, protocol.CreateParty{Nodes: nodes})

	assert.Empty(t, host.events)
	assert.Empty(t, rooms.rooms)
}

func TestJoinPartyUnknownIDReturnsNoParty(t *testing.T) {
	m, _, _ := newTestManager(t, mutex.Options{})
	c := newFakeConn("joiner")

	m.JoinParty(context.Background(), c, protocol.JoinParty{PartyID: uuid.NewString()})

	data, ok := c.last(protocol.EventJoinPartyResult)
	require.True(t, ok)
	assert.Equal(t, protocol.JoinPartyResult{Res: protocol.ResNoParty}, data)
	assert.Empty(t, c.PartyID())
}

// A blob can outlive an empty room inside the retention window; such a
// party is not joinable.
func TestJoinPartyRequiresLiveRoom(t *testing.T) {
	m, _, store := newTestManager(t, mutex.Options{})
	ctx := context.Background()

	id := uuid.NewString()
	require.NoError(t, store.Create(ctx, &Party{ID: id, Nodes: []graph.Node{}, Edges: []graph.Edge{}}))

	c := newFakeConn("joiner")
	m.JoinParty(ctx, c, protocol.JoinParty{PartyID: id})

	data, ok := c.last(protocol.EventJoinPartyResult)
	require.True(t, ok)
	assert.Equal(t, protocol.JoinPartyResult{Res: protocol.ResNoParty}, data)
}

func TestJoinPartyReturnsStateAndTrueRoomSize(t *testing.T) {
	m, rooms, _ := newTestManager(t, mutex.Options{})
	ctx := context.Background()
	host := newFakeConn("host")

	seed := protocol.CreateParty{
		Nodes:  []graph.Node{{ID: 1, Label: 1, X: 5, Y: 5}},
		Edges:  []graph.Edge{{ID: 1, StartID: 1, EndID: 1, Weight: 2}},
		NodeID: 1,
		EdgeID: 1,
	}
	id := createTestParty(t, m, host, seed)

	joiner := newFakeConn("joiner")
	m.JoinParty(ctx, joiner, protocol.JoinParty{PartyID: id})

	data, ok := joiner.last(protocol.EventJoinPartyResult)
	require.True(t, ok)
	res, ok := data.(protocol.JoinPartyResult)
	require.True(t, ok)
	assert.Equal(t, protocol.ResJoined, res.Res)
	require.NotNil(t, res.PData)
	assert.Equal(t, seed.Nodes, res.PData.Nodes)
	assert.Equal(t, seed.Edges, res.PData.Edges)
	assert.Equal(t, 2, res.PData.NumConnected)
	assert.Equal(t, rooms.Size(id), res.PData.NumConnected)
	assert.Equal(t, id, joiner.PartyID())

	// Everyone in the room hears about the new head count.
	data, ok = host.last(protocol.EventUserUpdate)
	require.True(t, ok)
	assert.Equal(t, protocol.UserUpdate{NumConnected: 2}, data)
}

func TestConcurrentCreateNodeAssignsUniqueIncreasingIDs(t *testing.T) {
	m, _, store := newTestManager(t, mutex.Options{})
	ctx := context.Background()
	host := newFakeConn("host")

	id := createTestParty(t, m, host, protocol.CreateParty{})

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.CreateNode(ctx, host, protocol.CreateNode{PartyID: id, X: float64(i), Y: float64(i)})
		}(i)
	}
	wg.Wait()

	pd, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, pd.Nodes, n)

	seen := make(map[int]bool, n)
	for i, node := range pd.Nodes {
		assert.False(t, seen[node.ID], "duplicate id %d", node.ID)
		seen[node.ID] = true
		assert.Equal(t, i+1, node.Label)
		if i > 0 {
			assert.Greater(t, node.ID, pd.Nodes[i-1].ID, "ids not increasing in assignment order")
		}
	}

	assert.Len(t, host.received(protocol.EventNodeCreated), n)
}

func TestCreateNodeUnknownParty(t *testing.T) {
	m, _, _ := newTestManager(t, mutex.Options{})
	c := newFakeConn("c")

	m.CreateNode(context.Background(), c, protocol.CreateNode{PartyID: uuid.NewString(), X: 1, Y: 1})

	data, ok := c.last(protocol.EventCreateNodeResult)
	require.True(t, ok)
	assert.Equal(t, protocol.Result{Res: protocol.ResNoParty}, data)
}

func TestCreateNodeSilentlyDroppedAtCap(t *testing.T) {
	m, _, store := newTestManager(t, mutex.Options{})
	ctx := context.Background()
	host := newFakeConn("host")

	nodes := make([]graph.Node, graph.MaxNodes)
	for i := range nodes {
		nodes[i] = graph.Node{ID: i, Label: i + 1}
	}
	id := createTestParty(t, m, host, protocol.CreateParty{Nodes: nodes, NodeID: graph.MaxNodes})

	m.CreateNode(ctx, host, protocol.CreateNode{PartyID: id, X: 1, Y: 1})

	assert.Empty(t, host.received(protocol.EventNodeCreated))
	pd, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, pd.Nodes, graph.MaxNodes)
}

func TestCreateEdgeMintsIDFromCounter(t *testing.T) {
	m, _, _ := newTestManager(t, mutex.Options{})
	ctx := context.Background()
	host := newFakeConn("host")

	id := createTestParty(t, m, host, protocol.CreateParty{EdgeID: 7})

	m.CreateEdge(ctx, host, protocol.CreateEdge{PartyID: id, StartID: 1, EndID: 2, Weight: 3.5})

	data, ok := host.last(protocol.EventEdgeCreated)
	require.True(t, ok)
	created, ok := data.(protocol.EdgeCreated)
	require.True(t, ok)
	assert.Equal(t, 8, created.Edge.ID)
	assert.Equal(t, 1, created.Edge.StartID)
	assert.Equal(t, 2, created.Edge.EndID)
	assert.Equal(t, 3.5, created.Edge.Weight)
}

func TestDeleteNodeCascadesEdgesAndRelabels(t *testing.T) {
	m, _, store := newTestManager(t, mutex.Options{})
	ctx := context.Background()
	host := newFakeConn("host")

	seed := protocol.CreateParty{
		Nodes: []graph.Node{
			{ID: 1, Label: 1},
			{ID: 2, Label: 2},
			{ID: 3, Label: 3},
		},
		Edges: []graph.Edge{
			{ID: 1, StartID: 1, EndID: 2},
			{ID: 2, StartID: 2, EndID: 3},
			{ID: 3, StartID: 1, EndID: 3},
		},
		NodeID: 3,
		EdgeID: 3,
	}
	id := createTestParty(t, m, host, seed)

	m.DeleteNode(ctx, host, protocol.DeleteNode{PartyID: id, ID: 2})

	pd, err := store.Get(ctx, id)
	require.NoError(t, err)

	require.Len(t, pd.Nodes, 2)
	assert.Equal(t, 1, pd.Nodes[0].ID)
	assert.Equal(t, 3, pd.Nodes[1].ID)
	assert.Equal(t, 1, pd.Nodes[0].Label)
	assert.Equal(t, 2, pd.Nodes[1].Label)

	require.Len(t, pd.Edges, 1)
	assert.Equal(t, 3, pd.Edges[0].ID)

	data, ok := host.last(protocol.EventNodeDeleted)
	require.True(t, ok)
	assert.Equal(t, protocol.NodeDeleted{NodeID: 2}, data)
}

func TestDeleteEdgeRemovesOnlyThatEdge(t *testing.T) {
	m, _, store := newTestManager(t, mutex.Options{})
	ctx := context.Background()
	host := newFakeConn("host")

	seed := protocol.CreateParty{
		Nodes: []graph.Node{{ID: 1, Label: 1}, {ID: 2, Label: 2}},
		Edges: []graph.Edge{
			{ID: 1, StartID: 1, EndID: 2},
			{ID: 2, StartID: 2, EndID: 1},
		},
		NodeID: 2,
		EdgeID: 2,
	}
	id := createTestParty(t, m, host, seed)

	m.DeleteEdge(ctx, host, protocol.DeleteEdge{PartyID: id, ID: 1})

	pd, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, pd.Edges, 1)
	assert.Equal(t, 2, pd.Edges[0].ID)
}

func TestChangeWeight(t *testing.T) {
	m, _, store := newTestManager(t, mutex.Options{})
	ctx := context.Background()
	host := newFakeConn("host")

	seed := protocol.CreateParty{
		Nodes:  []graph.Node{{ID: 1, Label: 1}},
		Edges:  []graph.Edge{{ID: 1, StartID: 1, EndID: 1, Weight: 4}},
		NodeID: 1,
		EdgeID: 1,
	}
	id := createTestParty(t, m, host, seed)

	m.ChangeWeight(ctx, host, protocol.ChangeWeight{PartyID: id, ID: 1, NewWeight: 9})

	pd, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 9.0, pd.Edges[0].Weight)

	data, ok := host.last(protocol.EventWeightChanged)
	require.True(t, ok)
	assert.Equal(t, protocol.WeightChanged{EdgeID: 1, Weight: 9}, data)
}

func TestChangeWeightMissingEdgeIsSilent(t *testing.T) {
	m, _, _ := newTestManager(t, mutex.Options{})
	host := newFakeConn("host")

	id := createTestParty(t, m, host, protocol.CreateParty{})

	m.ChangeWeight(context.Background(), host, protocol.ChangeWeight{PartyID: id, ID: 42, NewWeight: 9})

	assert.Empty(t, host.received(protocol.EventWeightChanged))
}

func TestNodeMovedLastWriterWins(t *testing.T) {
	m, _, store := newTestManager(t, mutex.Options{})
	ctx := context.Background()
	host := newFakeConn("host")

	seed := protocol.CreateParty{
		Nodes:  []graph.Node{{ID: 1, Label: 1, X: 0, Y: 0}},
		NodeID: 1,
	}
	id := createTestParty(t, m, host, seed)

	m.NodeMoved(ctx, host, protocol.NodeMoved{PartyID: id, ID: 1, X: 10, Y: 20})
	m.NodeMoved(ctx, host, protocol.NodeMoved{PartyID: id, ID: 1, X: 30, Y: 40})

	pd, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 30.0, pd.Nodes[0].X)
	assert.Equal(t, 40.0, pd.Nodes[0].Y)

	updates := host.received(protocol.EventNodeMoveUpdate)
	require.Len(t, updates, 2)
	assert.Equal(t, protocol.NodeMoveUpdate{ID: 1, X: 30, Y: 40}, updates[1])
}

func TestClearGraphKeepsCounters(t *testing.T) {
	m, _, store := newTestManager(t, mutex.Options{})
	ctx := context.Background()
	host := newFakeConn("host")

	seed := protocol.CreateParty{
		Nodes:  []graph.Node{{ID: 1, Label: 1}, {ID: 2, Label: 2}},
		Edges:  []graph.Edge{{ID: 1, StartID: 1, EndID: 2}},
		NodeID: 2,
		EdgeID: 1,
	}
	id := createTestParty(t, m, host, seed)

	m.ClearGraph(ctx, host, protocol.ClearGraph{PartyID: id})

	pd, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, pd.Nodes)
	assert.Empty(t, pd.Edges)

	// Monotonicity survives the clear.
	next, err := store.IncrNodeID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, next)

	assert.Len(t, host.received(protocol.EventClearedGraph), 1)
}

func TestClearWeightsZeroesWithoutTouchingTopology(t *testing.T) {
	m, _, store := newTestManager(t, mutex.Options{})
	ctx := context.Background()
	host := newFakeConn("host")

	seed := protocol.CreateParty{
		Nodes:  []graph.Node{{ID: 1, Label: 1}, {ID: 2, Label: 2}},
		Edges:  []graph.Edge{{ID: 1, StartID: 1, EndID: 2, Weight: 5}, {ID: 2, StartID: 2, EndID: 1, Weight: -3}},
		NodeID: 2,
		EdgeID: 2,
	}
	id := createTestParty(t, m, host, seed)

	m.ClearWeights(ctx, host, protocol.ClearWeights{PartyID: id})

	pd, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, pd.Edges, 2)
	for _, e := range pd.Edges {
		assert.Zero(t, e.Weight)
	}
	assert.Equal(t, 1, pd.Edges[0].StartID)

	assert.Len(t, host.received(protocol.EventClearedWeights), 1)
}

func TestInsertGraphRemintsIDsAndRewritesEndpoints(t *testing.T) {
	m, _, store := newTestManager(t, mutex.Options{})
	ctx := context.Background()
	host := newFakeConn("host")

	id := createTestParty(t, m, host, protocol.CreateParty{
		Nodes:  []graph.Node{{ID: 99, Label: 1}},
		NodeID: 100,
		EdgeID: 50,
	})

	m.InsertGraph(ctx, host, protocol.InsertGraph{
		PartyID:  id,
		NewNodes: []graph.Node{{ID: 1}, {ID: 2}},
		NewEdges: []graph.Edge{{StartID: 1, EndID: 2, Weight: 5}},
	})

	pd, err := store.Get(ctx, id)
	require.NoError(t, err)

	require.Len(t, pd.Nodes, 2)
	assert.Equal(t, 101, pd.Nodes[0].ID)
	assert.Equal(t, 102, pd.Nodes[1].ID)

	require.Len(t, pd.Edges, 1)
	assert.Equal(t, 51, pd.Edges[0].ID)
	assert.Equal(t, 101, pd.Edges[0].StartID)
	assert.Equal(t, 102, pd.Edges[0].EndID)
	assert.Equal(t, 5.0, pd.Edges[0].Weight)

	data, ok := host.last(protocol.EventInsertedGraph)
	require.True(t, ok)
	inserted, ok := data.(protocol.InsertedGraph)
	require.True(t, ok)
	assert.Equal(t, pd.Nodes, inserted.NNodes)
	assert.Equal(t, pd.Edges, inserted.NEdges)
}

func TestDisconnectUpdatesRemainingMembers(t *testing.T) {
	m, rooms, store := newTestManager(t, mutex.Options{})
	ctx := context.Background()
	host := newFakeConn("host")

	id := createTestParty(t, m, host, protocol.CreateParty{})

	joiner := newFakeConn("joiner")
	m.JoinParty(ctx, joiner, protocol.JoinParty{PartyID: id})
	require.Equal(t, 2, rooms.Size(id))

	m.Disconnect(ctx, joiner)

	assert.Equal(t, 1, rooms.Size(id))

	pd, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"host"}, pd.Members)
	assert.Equal(t, 1, pd.NumConnected)

	data, ok := host.last(protocol.EventUserUpdate)
	require.True(t, ok)
	assert.Equal(t, protocol.UserUpdate{NumConnected: 1}, data)
}

func TestDisconnectUnboundIsNoOp(t *testing.T) {
	m, rooms, _ := newTestManager(t, mutex.Options{})

	c := newFakeConn("loner")
	m.Disconnect(context.Background(), c)

	assert.Empty(t, c.events)
	assert.Empty(t, rooms.rooms)
}

func TestLockTimeoutSurfacesAsGenericError(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewRedisStore(client)
	locker := mutex.NewRedisMutex(client, mutex.Options{
		Timeout: 150 * time.Millisecond,
		Poll:    20 * time.Millisecond,
	})
	rooms := newFakeRooms()
	m := NewManager(store, locker, rooms)

	ctx := context.Background()
	host := newFakeConn("host")
	id := createTestParty(t, m, host, protocol.CreateParty{})

	// Hold the party's lock so the mutation can't get in.
	_, err = locker.Acquire(ctx, id)
	require.NoError(t, err)

	m.CreateNode(ctx, host, protocol.CreateNode{PartyID: id, X: 1, Y: 1})

	data, ok := host.last(protocol.EventCreateNodeResult)
	require.True(t, ok)
	assert.Equal(t, protocol.Result{Res: protocol.ResError}, data)
	assert.Empty(t, host.received(protocol.EventNodeCreated))
}

func TestMutationsOnDifferentPartiesDoNotInterfere(t *testing.T) {
	m, _, store := newTestManager(t, mutex.Options{})
	ctx := context.Background()

	hostA := newFakeConn("host-a")
	hostB := newFakeConn("host-b")
	idA := createTestParty(t, m, hostA, protocol.CreateParty{})
	idB := createTestParty(t, m, hostB, protocol.CreateParty{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.CreateNode(ctx, hostA, protocol.CreateNode{PartyID: idA, X: float64(i), Y: 0})
			m.CreateNode(ctx, hostB, protocol.CreateNode{PartyID: idB, X: float64(i), Y: 0})
		}(i)
	}
	wg.Wait()

	for _, id := range []string{idA, idB} {
		pd, err := store.Get(ctx, id)
		require.NoError(t, err, fmt.Sprintf("party %s", id))
		assert.Len(t, pd.Nodes, 10)
	}
}
