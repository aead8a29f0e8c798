package syncengine

import "context"

// Puller requests the next batch of a stream from the server, starting
// strictly after since (the empty string means "from the beginning").
type Puller interface {
	Pull(ctx context.Context, stream Stream, since string, limit int) (Batch, error)
}

// ApplyFunc applies one stream entry to the workspace store. Once it
// returns nil, the caller persists the entry's Ordinal as the stream's new
// cursor value in a separate write.
type ApplyFunc func(ctx context.Context, entry Entry) error

// defaultPullLimit bounds how many entries one pull request returns.
const defaultPullLimit = 200
