package graph

// Bounds enforced on every client payload before any store access.
const (
	MaxEntityID = 100000
	MinWeight   = -100000
	MaxWeight   = 10000
	MaxNodes    = 500
	MaxEdges    = 2000
)

// Node is one vertex of a party's graph. Label is the 1-based display
// rank and is recomputed whenever a node is removed. Distance and
// Highlighted are client-side visualization state carried through the
// blob untouched; a nil Distance means "unvisited".
type Node struct {
	ID          int      `json:"id" validate:"gte=0,lte=100000"`
	Label       int      `json:"label"`
	X           float64  `json:"x" validate:"finite"`
	Y           float64  `json:"y" validate:"finite"`
	Size        float64  `json:"size"`
	Distance    *float64 `json:"distance"`
	Highlighted bool     `json:"highlighted"`
}

// Edge endpoints reference Node ids. The server does not verify the
// endpoints against current graph membership; dangling references are
// the client's problem until the node deletion cascade removes them.
type Edge struct {
	ID          int     `json:"id" validate:"gte=0,lte=100000"`
	Weight      float64 `json:"weight" validate:"finite,gte=-100000,lte=10000"`
	StartID     int     `json:"startID" validate:"gte=0,lte=100000"`
	EndID       int     `json:"endID" validate:"gte=0,lte=100000"`
	Highlighted bool    `json:"highlighted"`
}
