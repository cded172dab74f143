package model

import "time"

// PooledConnection wraps a long-lived vector store handle shared by every
// caller targeting the same normalized path.
type PooledConnection struct {
	Connection  any
	Path        string
	CreatedAt   time.Time
	LastAccess  time.Time
	AccessCount int64
	Healthy     bool
	BorrowedAt  *time.Time
}

// DistanceType is the vector similarity measure used by nearest_to queries.
type DistanceType string

const (
	DistanceL2     DistanceType = "l2"
	DistanceCosine DistanceType = "cosine"
	DistanceDot    DistanceType = "dot"
)

// IVFPQConfig is the set of parameters handed to Table.create_index.
type IVFPQConfig struct {
	NumPartitions  int
	NumSubVectors  int
	NumBits        int
	MaxIterations  int
	DistanceType   DistanceType
	EstimatedRecall float64
}
