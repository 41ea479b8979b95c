// Package protocol defines the named events and payload shapes of the
// real-time channel. The transport (see internal/hub) guarantees
// ordered, reliable per-connection delivery; everything here is the
// application-level contract with the client.
package protocol

import (
	"encoding/json"

	"github.com/bjwdenbesten/Graphical/internal/graph"
)

// Inbound events.
const (
	EventCreateParty  = "create-party"
	EventJoinParty    = "join-party"
	EventCreateNode   = "create-node"
	EventNodeMoved    = "node-moved"
	EventCreateEdge   = "create-edge"
	EventDeleteNode   = "delete-node"
	EventDeleteEdge   = "delete-edge"
	EventChangeWeight = "change-weight"
	EventClearGraph   = "clear-graph"
	EventClearWeights = "clear-weights"
	EventInsertGraph  = "insert-graph"
)

// Outbound events.
const (
	EventPartyID            = "party-id"
	EventCreatePartyResult  = "create-party-result"
	EventJoinPartyResult    = "join-party-result"
	EventUserUpdate         = "user-update"
	EventNodeCreated        = "node-created"
	EventCreateNodeResult   = "create-node-result"
	EventNodeMoveUpdate     = "node-move-update"
	EventEdgeCreated        = "edge-created"
	EventCreateEdgeResult   = "create-edge-result"
	EventNodeDeleted        = "node-deleted"
	EventDeleteNodeResult   = "delete-node-result"
	EventEdgeDeleted        = "edge-deleted"
	EventDeleteEdgeResult   = "delete-edge-result"
	EventWeightChanged      = "weight-changed"
	EventChangeWeightResult = "change-weight-result"
	EventClearedGraph       = "cleared-graph"
	EventClearGraphResult   = "clear-graph-result"
	EventClearedWeights     = "cleared-weights"
	EventClearWeightsResult = "clear-weights-result"
	EventInsertedGraph      = "inserted-graph"
	EventInsertGraphResult  = "insert-graph-result"
	EventRateLimit          = "rate-limit"
)

// Result reason codes.
const (
	ResJoined         = "joined-party"
	ResNoParty        = "no-party"
	ResError          = "error"
	ResAlreadyInParty = "already in party"
)

// Envelope frames every message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// CreateParty seeds a new party from the creator's local graph. NodeID
// and EdgeID seed the party's atomic counters.
type CreateParty struct {
	Nodes  []graph.Node `json:"nodes" validate:"max=500,dive"`
	Edges  []graph.Edge `json:"edges" validate:"max=2000,dive"`
	NodeID int          `json:"nodeID" validate:"gte=0,lte=100000"`
	EdgeID int          `json:"edgeID" validate:"gte=0,lte=100000"`
}

type JoinParty struct {
	PartyID string `json:"partyID" validate:"uuid4"`
}

type CreateNode struct {
	PartyID string  `json:"partyID" validate:"uuid4"`
	X       float64 `json:"x" validate:"finite"`
	Y       float64 `json:"y" validate:"finite"`
}

type NodeMoved struct {
	PartyID string  `json:"partyID" validate:"uuid4"`
	ID      int     `json:"id" validate:"gte=0,lte=100000"`
	X       float64 `json:"x" validate:"finite"`
	Y       float64 `json:"y" validate:"finite"`
}

type CreateEdge struct {
	PartyID string  `json:"partyID" validate:"uuid4"`
	StartID int     `json:"startID" validate:"gte=0,lte=100000"`
	EndID   int     `json:"endID" validate:"gte=0,lte=100000"`
	Weight  float64 `json:"weight" validate:"finite,gte=-100000,lte=10000"`
}

type DeleteNode struct {
	PartyID string `json:"partyID" validate:"uuid4"`
	ID      int    `json:"id" validate:"gte=0,lte=100000"`
}

type DeleteEdge struct {
	PartyID string `json:"partyID" validate:"uuid4"`
	ID      int    `json:"id" validate:"gte=0,lte=100000"`
}

type ChangeWeight struct {
	PartyID   string  `json:"partyID" validate:"uuid4"`
	ID        int     `json:"id" validate:"gte=0,lte=100000"`
	NewWeight float64 `json:"newWeight" validate:"finite,gte=-100000,lte=10000"`
}

type ClearGraph struct {
	PartyID string `json:"partyID" validate:"uuid4"`
}

type ClearWeights struct {
	PartyID string `json:"partyID" validate:"uuid4"`
}

type InsertGraph struct {
	PartyID  string       `json:"partyID" validate:"uuid4"`
	NewNodes []graph.Node `json:"newNodes" validate:"max=500,dive"`
	NewEdges []graph.Edge `json:"newEdges" validate:"max=2000,dive"`
}

// Result is the generic failure surface for handlers that report
// failures not self-evident from inaction.
type Result struct {
	Res string `json:"res"`
}

// PartyData is the full session snapshot handed to a joining member.
type PartyData struct {
	Nodes        []graph.Node `json:"nodes"`
	Edges        []graph.Edge `json:"edges"`
	NodeID       int          `json:"nodeid"`
	EdgeID       int          `json:"edgeid"`
	NumConnected int          `json:"numConnected"`
	ID           string       `json:"ID"`
}

type JoinPartyResult struct {
	Res   string     `json:"res"`
	PData *PartyData `json:"pData,omitempty"`
}

type UserUpdate struct {
	NumConnected int `json:"numConnected"`
}

type NodeCreated struct {
	Node graph.Node `json:"node"`
}

type NodeMoveUpdate struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

type EdgeCreated struct {
	Edge graph.Edge `json:"edge"`
}

type NodeDeleted struct {
	NodeID int `json:"nodeID"`
}

type EdgeDeleted struct {
	EdgeID int `json:"edgeID"`
}

type WeightChanged struct {
	EdgeID int     `json:"edgeID"`
	Weight float64 `json:"weight"`
}

type InsertedGraph struct {
	NNodes []graph.Node `json:"nNodes"`
	NEdges []graph.Edge `json:"nEdges"`
}

type RateLimit struct {
	Event string `json:"event"`
}
