// Package artifact persists completed runs: the generated DOT text
// plus metadata about the run that produced it.
//
// Two backends exist. [FileStore] writes JSON records into a local
// directory and suits CLI use; [MongoStore] keeps records in a MongoDB
// collection for shared deployments. Both implement [Store].
package artifact

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("artifact not found")

// Record is one completed run.
type Record struct {
	// ID is the run identifier, assigned by the pipeline.
	ID string `json:"id" bson:"_id"`

	// Corpus is the corpus document the run was built from.
	Corpus string `json:"corpus" bson:"corpus"`

	// DOT is the generated graph text.
	DOT string `json:"dot" bson:"dot"`

	// Engine is the layout engine the run was configured for.
	Engine string `json:"engine,omitempty" bson:"engine,omitempty"`

	// NodeCount and EdgeCount describe the generated graph.
	NodeCount int `json:"node_count" bson:"node_count"`
	EdgeCount int `json:"edge_count" bson:"edge_count"`

	// Duration is the total pipeline run time.
	Duration time.Duration `json:"duration" bson:"duration"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Store is the interface for artifact storage backends.
type Store interface {
	// Put stores a record, overwriting any record with the same ID.
	Put(ctx context.Context, rec *Record) error

	// Get retrieves a record by ID. Returns ErrNotFound when absent.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns record IDs, most recent first.
	List(ctx context.Context) ([]string, error)

	// Delete removes a record. Deleting a missing record is not an
	// error.
	Delete(ctx context.Context, id string) error

	// Close releases backend resources.
	Close(ctx context.Context) error
}
