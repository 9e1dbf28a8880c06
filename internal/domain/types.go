// Package domain holds the core entity types shared across the relational
// store, the property graph store, and the pipeline handlers. Types here
// carry only ids across store boundaries — no in-memory object graph
// crosses the RS/PGS boundary.
package domain

import "time"

// ConnectionStatus enumerates the lifecycle of a bound external identity.
type ConnectionStatus string

const (
	ConnectionActive   ConnectionStatus = "active"
	ConnectionInactive ConnectionStatus = "inactive"
	ConnectionError    ConnectionStatus = "error"
)

// JobType enumerates the five pipeline stages plus nothing else; the
// worker's handler registry is keyed by this type.
type JobType string

const (
	JobProcessDocument          JobType = "PROCESS_DOCUMENT"
	JobChunkDocument            JobType = "CHUNK_DOCUMENT"
	JobEmbedChunks              JobType = "EMBED_CHUNKS"
	JobExtractEntitiesRelations JobType = "EXTRACT_ENTITIES_RELATIONS"
	JobUpsertGraph              JobType = "UPSERT_GRAPH"
)

// JobStatus is the job state machine from spec §4.2.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// EntityType is the closed set of extracted entity labels. Unknown types
// extracted by the LLM are coerced to Topic at upsert time (§4.8).
type EntityType string

const (
	EntityPerson  EntityType = "Person"
	EntityCompany EntityType = "Company"
	EntityTopic   EntityType = "Topic"
)

// Workspace is the tenant root. Created externally; the core only reads it.
type Workspace struct {
	ID   string
	Name string
}

// Vault is a named retrieval-scope container. Exactly one default vault
// exists per workspace (I-default-vault).
type Vault struct {
	ID          string
	WorkspaceID string
	Name        string
	IsDefault   bool
	Description string
}

// Connection is a bound external-source identity, workspace-scoped.
type Connection struct {
	ID             string
	WorkspaceID    string
	SourceType     string
	ExternalAuthID string
	Status         ConnectionStatus
}

// VaultConnectionLink realizes the vault<->connection many-to-many set.
type VaultConnectionLink struct {
	VaultID      string
	ConnectionID string
}

// Document is the canonical unit of ingested text with provenance.
// Unique on (WorkspaceID, SourceType, ExternalID) — I2.
type Document struct {
	ID            string
	WorkspaceID   string
	ConnectionID  string
	SourceType    string
	ExternalID    string
	URL           string
	Title         string
	AuthorName    string
	AuthorEmail   string
	ContentText   string
	ContentHash   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Chunk is a contiguous substring of a document with character offsets
// and, once embedded, a fixed-dimensional vector. Unique on
// (WorkspaceID, DocumentID, Idx) — ordered by Idx within a document.
type Chunk struct {
	ID          string
	WorkspaceID string
	DocumentID  string
	Idx         int
	Text        string
	StartOffset int
	EndOffset   int
	Embedding   []float32 // nil until EMBED_CHUNKS has run
}

// EntityMention is an attested occurrence of an entity in a document
// (and optionally a specific chunk).
type EntityMention struct {
	ID          string
	WorkspaceID string
	DocumentID  string
	ChunkID     string // empty when no evidence chunk matched
	EntityKey   string
	EntityType  EntityType
	EntityName  string
	Confidence  float64
}

// Job is one row of the at-least-once Postgres-backed queue (§4.2).
type Job struct {
	ID          string
	WorkspaceID string
	Type        JobType
	Payload     []byte // opaque JSON
	Status      JobStatus
	Attempts    int
	LastError   string
	RunAfter    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// JobStats aggregates counts by (type, status) for the /jobs/stats boundary.
type JobStats struct {
	ByTypeStatus map[string]map[JobStatus]int
	Queued       int
	Running      int
	Done         int
	Failed       int
	Total        int
}
