package wsstore

import "github.com/workspace-engine/core/internal/id"

// NodeType enumerates the universal content unit's possible kinds.
type NodeType string

const (
	NodeSpace        NodeType = "space"
	NodePage         NodeType = "page"
	NodeFolder       NodeType = "folder"
	NodeDatabase     NodeType = "database"
	NodeDatabaseView NodeType = "database_view"
	NodeRecord       NodeType = "record"
	NodeChannel      NodeType = "channel"
	NodeChat         NodeType = "chat"
	NodeMessage      NodeType = "message"
	NodeFile         NodeType = "file"
)

// Node is the universal content unit (§3).
type Node struct {
	ID             id.ID
	Type           NodeType
	ParentID       id.ID
	RootID         id.ID
	Attributes     map[string]any
	LocalRevision  string
	ServerRevision string
	CreatedAt      string
	CreatedBy      string
	UpdatedAt      string
	UpdatedBy      string
}

// Document is present only for node types that carry collaborative
// content (page, record).
type Document struct {
	ID             id.ID
	Type           string
	Content        map[string]any
	LocalRevision  string
	ServerRevision string
	CreatedAt      string
	CreatedBy      string
	UpdatedAt      string
	UpdatedBy      string
}

// Tombstone shadows a deleted node/document id.
type Tombstone struct {
	ID        id.ID
	Data      []byte
	DeletedAt string
}

// Cursor is the highest-seen server ordinal for one synchronizer stream.
type Cursor struct {
	Key       string
	Value     string
	CreatedAt string
	UpdatedAt string
}

// MutationType identifies the server-side operation a queued Mutation
// replays (§4.3).
type MutationType string

const (
	MutationNodeCreate         MutationType = "node.create"
	MutationNodeUpdate         MutationType = "node.update"
	MutationNodeDelete         MutationType = "node.delete"
	MutationDocumentUpdate     MutationType = "document.update"
	MutationReactionAdd        MutationType = "reaction.add"
	MutationReactionRemove     MutationType = "reaction.remove"
	MutationInteractionSeen    MutationType = "interaction.seen"
	MutationInteractionOpened  MutationType = "interaction.opened"
	MutationFileUploadBegin    MutationType = "file.upload.begin"
	MutationFileUploadComplete MutationType = "file.upload.complete"
	MutationAvatarUpload       MutationType = "avatar.upload"
)

// Mutation is one durable local intent awaiting replay to the server.
type Mutation struct {
	ID        id.ID
	Type      MutationType
	Data      map[string]any
	CreatedAt string
	Retries   int
	Dead      bool
}

// RemoteNode is the authoritative node record received from the server,
// applied via ApplyRemoteNode.
type RemoteNode struct {
	ID             id.ID
	Attributes     map[string]any
	RootID         id.ID
	ServerRevision string
	CreatedAt      string
	CreatedBy      string
	UpdatedAt      string
	UpdatedBy      string
}

// RemoteUpdate is an incremental binary CRDT update received from the
// server for a node or document, applied via ApplyRemoteNodeUpdate.
type RemoteUpdate struct {
	TargetID       id.ID
	Data           []byte
	ServerRevision string
}
