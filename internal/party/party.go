// Package party owns the collaborative session lifecycle and the
// mutation protocol. A party is a shared graph identified by a random
// id, persisted as a JSON blob in the store alongside two atomic id
// counters, and bound to a room of live connections.
package party

import (
	"errors"
	"time"

	"github.com/bjwdenbesten/Graphical/internal/graph"
)

// ErrNoParty means the store holds no blob for the requested id.
var ErrNoParty = errors.New("party: not found")

// Party is the durable session blob. Field names match the wire and
// the stored JSON. NodeID/EdgeID record the counter seeds supplied at
// creation; the live counters are stored under separate keys so they
// can be incremented atomically without the party lock.
type Party struct {
	Nodes        []graph.Node `json:"nodes"`
	Edges        []graph.Edge `json:"edges"`
	NodeID       int          `json:"nodeid"`
	EdgeID       int          `json:"edgeid"`
	ID           string       `json:"ID"`
	Host         string       `json:"host"`
	Members      []string     `json:"members"`
	NumConnected int          `json:"numConnected"`
	Created      time.Time    `json:"created"`
}
