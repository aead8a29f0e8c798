// Package syncengine drives convergence between the local replica and the
// server (§4.4): one Synchronizer per workspace, pulling a fixed set of
// named cursor streams and pushing the mutation queue.
package syncengine

import "encoding/json"

// Stream names one of the synchronizer's independent cursor streams.
type Stream string

const (
	StreamNodeUpdates      Stream = "nodes-updates"
	StreamNodeReactions    Stream = "node-reactions"
	StreamNodeInteractions Stream = "node-interactions"
	StreamNodeTombstones   Stream = "node-tombstones"
	StreamCollaborations   Stream = "collaborations"
	StreamUsers            Stream = "users"
	StreamDocumentUpdates  Stream = "document-updates"
)

// AllStreams lists every stream a Synchronizer owns.
var AllStreams = []Stream{
	StreamNodeUpdates, StreamNodeReactions, StreamNodeInteractions,
	StreamNodeTombstones, StreamCollaborations, StreamUsers, StreamDocumentUpdates,
}

// Entry is one ordered item from a stream's pull response.
type Entry struct {
	Ordinal string
	Payload json.RawMessage
}

// Batch is the server's ordered response to one pull request.
type Batch struct {
	Entries []Entry
}
