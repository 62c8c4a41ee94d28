package tgraph

import "errors"

// These are used only as structured-logging detail for AddEdge's failure
// paths; AddEdge itself reports failure as bool, per the original
// rideable's contract.
var (
	errAbsentEndpoint = errors.New("tgraph: one or both endpoints absent")
	errEdgeExists     = errors.New("tgraph: edge already exists")
)
