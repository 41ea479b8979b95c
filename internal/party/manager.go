package party

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bjwdenbesten/Graphical/internal/graph"
	"github.com/bjwdenbesten/Graphical/internal/logger"
	"github.com/bjwdenbesten/Graphical/internal/mutex"
	"github.com/bjwdenbesten/Graphical/internal/protocol"
)

// Conn is one client connection as the manager sees it. Emit delivers
// an event to this connection only; delivery is fire-and-forget.
type Conn interface {
	ID() string
	Emit(event string, data any)
	PartyID() string
	BindParty(id string)
}

// Rooms tracks live membership per party and fans confirmed mutations
// out to every member. Size is the authoritative numConnected source;
// client input is never trusted for it.
type Rooms interface {
	Join(roomID string, c Conn)
	Leave(roomID string, c Conn)
	Size(roomID string) int
	Exists(roomID string) bool
	Broadcast(roomID string, event string, data any)
}

// Manager is the sole writer of party state. Structural mutations are
// serialized per party through the Locker; moves and weight updates
// deliberately skip it and resolve last-writer-wins.
type Manager struct {
	store  Store
	locker mutex.Locker
	rooms  Rooms
}

func NewManager(store Store, locker mutex.Locker, rooms Rooms) *Manager {
	return &Manager{
		store:  store,
		locker: locker,
		rooms:  rooms,
	}
}

// CreateParty allocates a fresh party seeded with the creator's local
// graph, persists it, and hands the id back to the creator only.
func (m *Manager) CreateParty(ctx context.Context, c Conn, p protocol.CreateParty) {
	if err := graph.Validate(&p); err != nil {
		logger.Debug("create-party rejected", map[string]any{"error": err.Error()})
		return
	}
	if c.PartyID() != "" {
		c.Emit(protocol.EventCreatePartyResult, protocol.Result{Res: protocol.ResAlreadyInParty})
		return
	}

	id := uuid.NewString()

	pd := &Party{
		Nodes:        p.Nodes,
		Edges:        p.Edges,
		NodeID:       p.NodeID,
		EdgeID:       p.EdgeID,
		ID:           id,
		Host:         c.ID(),
		Members:      []string{c.ID()},
		NumConnected: 1,
		Created:      time.Now().UTC(),
	}
	if pd.Nodes == nil {
		pd.Nodes = []graph.Node{}
	}
	if pd.Edges == nil {
		pd.Edges = []graph.Edge{}
	}

	if err := m.store.Create(ctx, pd); err != nil {
		logger.Error("create-party store failure", map[string]any{"error": err.Error()})
		c.Emit(protocol.EventCreatePartyResult, protocol.Result{Res: protocol.ResError})
		return
	}

	m.rooms.Join(id, c)
	c.BindParty(id)

	logger.Info("party created", map[string]any{"party": id, "host": c.ID()})
	c.Emit(protocol.EventPartyID, id)
}

// JoinParty binds the connection to an existing party. A joinable
// party needs both a stored blob and a live room; a blob whose room
// has emptied is not joinable within the retention window.
func (m *Manager) JoinParty(ctx context.Context, c Conn, p protocol.JoinParty) {
	if err := graph.Validate(&p); err != nil {
		return
	}

	pd, err := m.store.Get(ctx, p.PartyID)
	if errors.Is(err, ErrNoParty) || (err == nil && !m.rooms.Exists(p.PartyID)) {
		c.Emit(protocol.EventJoinPartyResult, protocol.JoinPartyResult{Res: protocol.ResNoParty})
		return
	}
	if err != nil {
		c.Emit(protocol.EventJoinPartyResult, protocol.JoinPartyResult{Res: protocol.ResError})
		return
	}

	m.rooms.Join(p.PartyID, c)
	c.BindParty(p.PartyID)

	if !contains(pd.Members, c.ID()) {
		pd.Members = append(pd.Members, c.ID())
		pd.NumConnected = m.rooms.Size(p.PartyID)
		if err := m.store.Save(ctx, pd); err != nil {
			c.Emit(protocol.EventJoinPartyResult, protocol.JoinPartyResult{Res: protocol.ResError})
			return
		}
	}

	logger.Info("member joined", map[string]any{"party": p.PartyID, "conn": c.ID()})

	c.Emit(protocol.EventJoinPartyResult, protocol.JoinPartyResult{
		Res: protocol.ResJoined,
		PData: &protocol.PartyData{
			Nodes:        pd.Nodes,
			Edges:        pd.Edges,
			NodeID:       pd.NodeID,
			EdgeID:       pd.EdgeID,
			NumConnected: pd.NumConnected,
			ID:           pd.ID,
		},
	})

	m.rooms.Broadcast(p.PartyID, protocol.EventUserUpdate, protocol.UserUpdate{
		NumConnected: pd.NumConnected,
	})
}

// Disconnect drops the connection from its party, if any, and tells
// the remaining members the new head count. An in-flight mutation from
// this connection still completes; only membership changes here.
func (m *Manager) Disconnect(ctx context.Context, c Conn) {
	partyID := c.PartyID()
	if partyID == "" {
		return
	}

	m.rooms.Leave(partyID, c)

	pd, err := m.store.Get(ctx, partyID)
	if err != nil {
		return
	}

	pd.Members = remove(pd.Members, c.ID())
	pd.NumConnected = m.rooms.Size(partyID)

	if err := m.store.Save(ctx, pd); err != nil {
		logger.Error("disconnect store failure", map[string]any{"error": err.Error()})
		return
	}

	m.rooms.Broadcast(partyID, protocol.EventUserUpdate, protocol.UserUpdate{
		NumConnected: pd.NumConnected,
	})
}

// CreateNode mints a node id from the party's atomic counter and
// appends the node. The counter is independently atomic, so the id is
// collision-free even though it is fetched under the party lock only
// incidentally.
func (m *Manager) CreateNode(ctx context.Context, c Conn, p protocol.CreateNode) {
	if err := graph.Validate(&p); err != nil {
		return
	}

	m.mutateLocked(ctx, c, p.PartyID, protocol.EventCreateNodeResult, func(pd *Party) (string, any, error) {
		if len(pd.Nodes) >= graph.MaxNodes {
			return "", nil, nil
		}

		id, err := m.store.IncrNodeID(ctx, p.PartyID)
		if err != nil {
			return "", nil, err
		}

		node := graph.Node{
			ID:    id,
			Label: len(pd.Nodes) + 1,
			X:     p.X,
			Y:     p.Y,
		}
		pd.Nodes = append(pd.Nodes, node)

		return protocol.EventNodeCreated, protocol.NodeCreated{Node: node}, nil
	})
}

// CreateEdge appends an edge between two node ids. Endpoints are not
// checked against current membership; deletion cascades clean up.
func (m *Manager) CreateEdge(ctx context.Context, c Conn, p protocol.CreateEdge) {
	if err := graph.Validate(&p); err != nil {
		return
	}

	m.mutateLocked(ctx, c, p.PartyID, protocol.EventCreateEdgeResult, func(pd *Party) (string, any, error) {
		if len(pd.Edges) >= graph.MaxEdges {
			return "", nil, nil
		}

		id, err := m.store.IncrEdgeID(ctx, p.PartyID)
		if err != nil {
			return "", nil, err
		}

		edge := graph.Edge{
			ID:      id,
			Weight:  p.Weight,
			StartID: p.StartID,
			EndID:   p.EndID,
		}
		pd.Edges = append(pd.Edges, edge)

		return protocol.EventEdgeCreated, protocol.EdgeCreated{Edge: edge}, nil
	})
}

// DeleteNode removes the node, relabels the survivors by their new
// 1-based position, and cascades away every edge touching the id.
func (m *Manager) DeleteNode(ctx context.Context, c Conn, p protocol.DeleteNode) {
	if err := graph.Validate(&p); err != nil {
		return
	}

	m.mutateLocked(ctx, c, p.PartyID, protocol.EventDeleteNodeResult, func(pd *Party) (string, any, error) {
		nodes := pd.Nodes[:0]
		for _, n := range pd.Nodes {
			if n.ID != p.ID {
				nodes = append(nodes, n)
			}
		}
		for i := range nodes {
			nodes[i].Label = i + 1
		}
		pd.Nodes = nodes

		edges := pd.Edges[:0]
		for _, e := range pd.Edges {
			if e.StartID != p.ID && e.EndID != p.ID {
				edges = append(edges, e)
			}
		}
		pd.Edges = edges

		return protocol.EventNodeDeleted, protocol.NodeDeleted{NodeID: p.ID}, nil
	})
}

func (m *Manager) DeleteEdge(ctx context.Context, c Conn, p protocol.DeleteEdge) {
	if err := graph.Validate(&p); err != nil {
		return
	}

	m.mutateLocked(ctx, c, p.PartyID, protocol.EventDeleteEdgeResult, func(pd *Party) (string, any, error) {
		edges := pd.Edges[:0]
		for _, e := range pd.Edges {
			if e.ID != p.ID {
				edges = append(edges, e)
			}
		}
		pd.Edges = edges

		return protocol.EventEdgeDeleted, protocol.EdgeDeleted{EdgeID: p.ID}, nil
	})
}

// ClearGraph empties both collections. Counters are left alone so ids
// stay monotonic across the party's whole lifetime.
func (m *Manager) ClearGraph(ctx context.Context, c Conn, p protocol.ClearGraph) {
	if err := graph.Validate(&p); err != nil {
		return
	}

	m.mutateLocked(ctx, c, p.PartyID, protocol.EventClearGraphResult, func(pd *Party) (string, any, error) {
		pd.Nodes = []graph.Node{}
		pd.Edges = []graph.Edge{}
		return protocol.EventClearedGraph, nil, nil
	})
}

// InsertGraph replaces the party's graph with a bulk payload. Client
// ids are temporary: every node and edge gets a freshly minted id, and
// edge endpoints are rewritten through the node translation table so
// the client's references survive renumbering.
func (m *Manager) InsertGraph(ctx context.Context, c Conn, p protocol.InsertGraph) {
	if err := graph.Validate(&p); err != nil {
		return
	}

	m.mutateLocked(ctx, c, p.PartyID, protocol.EventInsertGraphResult, func(pd *Party) (string, any, error) {
		nodes := make([]graph.Node, 0, len(p.NewNodes))
		edges := make([]graph.Edge, 0, len(p.NewEdges))
		idMap := make(map[int]int, len(p.NewNodes))

		for _, n := range p.NewNodes {
			id, err := m.store.IncrNodeID(ctx, p.PartyID)
			if err != nil {
				return "", nil, err
			}
			idMap[n.ID] = id
			n.ID = id
			nodes = append(nodes, n)
		}

		for _, e := range p.NewEdges {
			id, err := m.store.IncrEdgeID(ctx, p.PartyID)
			if err != nil {
				return "", nil, err
			}
			e.ID = id
			e.StartID = idMap[e.StartID]
			e.EndID = idMap[e.EndID]
			edges = append(edges, e)
		}

		pd.Nodes = nodes
		pd.Edges = edges

		return protocol.EventInsertedGraph, protocol.InsertedGraph{NNodes: nodes, NEdges: edges}, nil
	})
}

// NodeMoved is lockless: moves are high-frequency and idempotent in
// the limit, so concurrent writers simply resolve to whichever one
// lands last.
func (m *Manager) NodeMoved(ctx context.Context, c Conn, p protocol.NodeMoved) {
	if err := graph.Validate(&p); err != nil {
		return
	}

	pd, err := m.store.Get(ctx, p.PartyID)
	if err != nil {
		return
	}

	idx := nodeIndex(pd.Nodes, p.ID)
	if idx == -1 {
		return
	}
	pd.Nodes[idx].X = p.X
	pd.Nodes[idx].Y = p.Y

	if err := m.store.Save(ctx, pd); err != nil {
		logger.Error("node-moved store failure", map[string]any{"error": err.Error()})
		return
	}

	m.rooms.Broadcast(p.PartyID, protocol.EventNodeMoveUpdate, protocol.NodeMoveUpdate{
		ID: p.ID,
		X:  p.X,
		Y:  p.Y,
	})
}

// ChangeWeight is lockless for the same reason as NodeMoved.
func (m *Manager) ChangeWeight(ctx context.Context, c Conn, p protocol.ChangeWeight) {
	if err := graph.Validate(&p); err != nil {
		return
	}

	pd, err := m.store.Get(ctx, p.PartyID)
	if errors.Is(err, ErrNoParty) {
		c.Emit(protocol.EventChangeWeightResult, protocol.Result{Res: protocol.ResNoParty})
		return
	}
	if err != nil {
		return
	}

	idx := edgeIndex(pd.Edges, p.ID)
	if idx == -1 {
		return
	}
	pd.Edges[idx].Weight = p.NewWeight

	if err := m.store.Save(ctx, pd); err != nil {
		logger.Error("change-weight store failure", map[string]any{"error": err.Error()})
		return
	}

	m.rooms.Broadcast(p.PartyID, protocol.EventWeightChanged, protocol.WeightChanged{
		EdgeID: p.ID,
		Weight: p.NewWeight,
	})
}

// ClearWeights zeroes every edge weight without touching topology.
func (m *Manager) ClearWeights(ctx context.Context, c Conn, p protocol.ClearWeights) {
	if err := graph.Validate(&p); err != nil {
		return
	}

	pd, err := m.store.Get(ctx, p.PartyID)
	if errors.Is(err, ErrNoParty) {
		c.Emit(protocol.EventClearWeightsResult, protocol.Result{Res: protocol.ResNoParty})
		return
	}
	if err != nil {
		return
	}

	for i := range pd.Edges {
		pd.Edges[i].Weight = 0
	}

	if err := m.store.Save(ctx, pd); err != nil {
		logger.Error("clear-weights store failure", map[string]any{"error": err.Error()})
		return
	}

	m.rooms.Broadcast(p.PartyID, protocol.EventClearedWeights, nil)
}

// mutateLocked runs the serialize-all-structural-writes skeleton:
// acquire the party mutex, load the blob, apply fn to the in-memory
// copy, persist with a refreshed TTL, release, broadcast. fn returning
// an empty event means the mutation was silently dropped (size caps).
// Any failure is converted into a result event on resultEvent; nothing
// escapes to crash the connection.
func (m *Manager) mutateLocked(ctx context.Context, c Conn, partyID, resultEvent string, fn func(pd *Party) (string, any, error)) {
	token, err := m.locker.Acquire(ctx, partyID)
	if err != nil {
		logger.Warn("lock not acquired", map[string]any{"party": partyID, "error": err.Error()})
		c.Emit(resultEvent, protocol.Result{Res: protocol.ResError})
		return
	}
	defer func() {
		if err := m.locker.Release(ctx, partyID, token); err != nil {
			logger.Error("lock release failure", map[string]any{"party": partyID, "error": err.Error()})
		}
	}()

	pd, err := m.store.Get(ctx, partyID)
	if errors.Is(err, ErrNoParty) {
		c.Emit(resultEvent, protocol.Result{Res: protocol.ResNoParty})
		return
	}
	if err != nil {
		c.Emit(resultEvent, protocol.Result{Res: protocol.ResError})
		return
	}

	event, data, err := fn(pd)
	if err != nil {
		logger.Error("mutation failure", map[string]any{"party": partyID, "error": err.Error()})
		c.Emit(resultEvent, protocol.Result{Res: protocol.ResError})
		return
	}
	if event == "" {
		return
	}

	if err := m.store.Save(ctx, pd); err != nil {
		c.Emit(resultEvent, protocol.Result{Res: protocol.ResError})
		return
	}

	m.rooms.Broadcast(partyID, event, data)
}

func nodeIndex(nodes []graph.Node, id int) int {
	for i, n := range nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func edgeIndex(edges []graph.Edge, id int) int {
	for i, e := range edges {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
