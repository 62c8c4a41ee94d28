// Package model holds small value types shared across the reclaim, pht,
// and tgraph packages.
package model

import "fmt"

// VertexID identifies a vertex slot within a TGraph's fixed vertex table.
type VertexID uint32

// String returns a debug representation of the vertex id.
func (v VertexID) String() string {
	return fmt.Sprintf("v%d", uint32(v))
}
