// Package radar aggregates per-node activity (unread mentions, reactions,
// interaction history) into a per-user "what needs my attention" view. It
// supplements spec.md, which names Radar only in passing, with a concrete
// read model over node_counters, node_interactions, and node_reactions.
package radar

import (
	"context"
	"errors"
	"fmt"

	"github.com/workspace-engine/core/internal/eventbus"
	"github.com/workspace-engine/core/internal/id"
	"github.com/workspace-engine/core/internal/mediator"
	"github.com/workspace-engine/core/internal/wsstore"
)

// NodeActivity summarizes one node's unread state for one user.
type NodeActivity struct {
	NodeID         id.ID
	UnreadMentions int
	HasNewActivity bool // node updated since this user's last_seen_at
	ReactionCount  int
}

// Input selects the scope for a radar query: every descendant of RootID.
type Input struct {
	RootID id.ID
	UserID string
}

// Reader computes NodeActivity views from wsstore.
type Reader struct {
	store *wsstore.Store
}

// New constructs a Reader over store.
func New(store *wsstore.Store) *Reader {
	return &Reader{store: store}
}

// Summarize returns one NodeActivity per descendant of in.RootID (plus the
// root itself) that has any recorded activity for in.UserID.
func (r *Reader) Summarize(ctx context.Context, in Input) ([]NodeActivity, error) {
	descendants, err := r.store.FetchDescendants(ctx, in.RootID)
	if err != nil {
		return nil, fmt.Errorf("radar: fetch descendants: %w", err)
	}

	root, err := r.store.FetchNode(ctx, in.RootID)
	if err != nil {
		return nil, fmt.Errorf("radar: fetch root: %w", err)
	}

	nodes := append([]wsstore.Node{root}, descendants...)

	out := make([]NodeActivity, 0, len(nodes))

	for _, n := range nodes {
		activity, err := r.summarizeOne(ctx, n, in.UserID)
		if err != nil {
			return nil, err
		}

		if activity.UnreadMentions > 0 || activity.HasNewActivity || activity.ReactionCount > 0 {
			out = append(out, activity)
		}
	}

	return out, nil
}

func (r *Reader) summarizeOne(ctx context.Context, n wsstore.Node, userID string) (NodeActivity, error) {
	unread, err := r.store.FetchCounter(ctx, n.ID, "unread_mentions")
	if err != nil {
		return NodeActivity{}, fmt.Errorf("radar: fetch unread counter for %s: %w", n.ID, err)
	}

	reactions, err := r.store.ListReactions(ctx, n.ID)
	if err != nil {
		return NodeActivity{}, fmt.Errorf("radar: list reactions for %s: %w", n.ID, err)
	}

	hasNew := false

	interaction, err := r.store.FetchInteraction(ctx, n.ID, userID)
	switch {
	case err == nil:
		hasNew = n.UpdatedAt > interaction.LastSeenAt
	case errors.Is(err, wsstore.ErrNotFound):
		hasNew = true
	default:
		return NodeActivity{}, fmt.Errorf("radar: fetch interaction for %s: %w", n.ID, err)
	}

	return NodeActivity{
		NodeID:         n.ID,
		UnreadMentions: unread,
		HasNewActivity: hasNew,
		ReactionCount:  len(reactions),
	}, nil
}

// QueryHandler adapts Reader to the mediator's reactive query contract
// (§4.8): any node.created, node.updated, node.deleted, mutation.completed,
// or mutation.enqueued event is treated as potentially affecting a radar
// subscription, triggering a
// full recompute. Radar views are cheap enough (bounded by workspace
// subtree size) that a coarse invalidation policy is the right trade-off
// over diffing individual counters.
type QueryHandler struct {
	reader *Reader
}

// NewQueryHandler wraps reader for mediator registration.
func NewQueryHandler(reader *Reader) *QueryHandler {
	return &QueryHandler{reader: reader}
}

func (h *QueryHandler) Execute(ctx context.Context, input any) (any, error) {
	in, ok := input.(Input)
	if !ok {
		return nil, fmt.Errorf("radar: unexpected input type %T", input)
	}

	return h.reader.Summarize(ctx, in)
}

func (h *QueryHandler) CheckForChanges(ctx context.Context, ev eventbus.Event, input any, lastOutput any) (bool, any, error) {
	switch ev.Name {
	case eventbus.NodeUpdated, eventbus.NodeCreated, eventbus.NodeDeleted,
		eventbus.MutationCompleted, eventbus.MutationEnqueued:
	default:
		return false, nil, nil
	}

	newOutput, err := h.Execute(ctx, input)
	if err != nil {
		return false, nil, err
	}

	return true, newOutput, nil
}

var _ mediator.QueryHandler = (*QueryHandler)(nil)
