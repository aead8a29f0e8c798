package permission

import "github.com/workspace-engine/core/internal/wsstore"

// Actor is the subject a capability check is evaluated for.
type Actor struct {
	UserID        string
	WorkspaceRole WorkspaceRole
}

// Context carries everything a capability function needs: the actor, the
// ancestor chain from the node up to its root space (as returned by
// wsstore.FetchNodeTree, root first), and the node/attributes under
// consideration, when they exist yet.
type Context struct {
	Actor      Actor
	Ancestors  []wsstore.Node
	Node       *wsstore.Node
	Attributes map[string]any
	Roles      map[string]NodeRole // node id -> the actor's explicit role on that node
}

// RolesFromStore converts wsstore.FetchRolesForUser's raw (nodeId ->
// role string) map into the typed form Context.Roles expects.
func RolesFromStore(raw map[string]string) map[string]NodeRole {
	roles := make(map[string]NodeRole, len(raw))
	for nodeID, role := range raw {
		roles[nodeID] = NodeRole(role)
	}

	return roles
}

// EffectiveRole resolves a user's role on a node by walking the ancestor
// chain from the node up to its root space and taking the first explicit
// role entry found; NodeRole("") and false if none exists.
func EffectiveRole(ctx Context) (NodeRole, bool) {
	for i := len(ctx.Ancestors) - 1; i >= 0; i-- {
		if role, ok := ctx.Roles[ctx.Ancestors[i].ID.String()]; ok {
			return role, true
		}
	}

	return "", false
}

// Capability is a pure predicate over a Context.
type Capability func(Context) bool

// CapabilitySet is the per-node-type registration described in §4.9.
type CapabilitySet struct {
	CanCreate           Capability
	CanUpdateAttributes Capability
	CanUpdateDocument   Capability
	CanDelete           Capability
	CanReact            Capability
	ExtractText         func(attributes map[string]any) string
	ExtractMentions     func(attributes map[string]any) []string
}

// Registry maps node type to its capability set.
type Registry map[wsstore.NodeType]CapabilitySet

// DefaultRegistry builds the illustrative per-type rules from §4.9:
// space creation requires admin-in-initial-collaborators plus workspace
// collaborator+; page/folder/database creation requires editor+ on the
// parent; deletion of pages/folders requires admin; record edit requires
// editor+ on the parent database or creator identity.
func DefaultRegistry() Registry {
	requireParentEditor := func(ctx Context) bool {
		role, ok := EffectiveRole(ctx)
		return ok && HasNodeRole(role, NodeEditor)
	}

	requireParentAdmin := func(ctx Context) bool {
		role, ok := EffectiveRole(ctx)
		return ok && HasNodeRole(role, NodeAdmin)
	}

	recordEdit := func(ctx Context) bool {
		if ctx.Node != nil && ctx.Node.CreatedBy == ctx.Actor.UserID {
			return true
		}

		role, ok := EffectiveRole(ctx)
		return ok && HasNodeRole(role, NodeEditor)
	}

	spaceCreate := func(ctx Context) bool {
		if !HasWorkspaceRole(ctx.Actor.WorkspaceRole, WorkspaceCollaborator) {
			return false
		}

		role, ok := ctx.Roles[""]
		return ok && role == NodeAdmin
	}

	textField := func(attrs map[string]any) string {
		name, _ := attrs["name"].(string)
		return name
	}

	noMentions := func(attrs map[string]any) []string { return nil }

	return Registry{
		wsstore.NodeSpace: {
			CanCreate: spaceCreate, CanUpdateAttributes: requireParentAdmin,
			CanDelete: requireParentAdmin, CanReact: allow,
			ExtractText: textField, ExtractMentions: noMentions,
		},
		wsstore.NodePage: {
			CanCreate: requireParentEditor, CanUpdateAttributes: requireParentEditor,
			CanUpdateDocument: requireParentEditor, CanDelete: requireParentAdmin,
			CanReact: allow, ExtractText: textField, ExtractMentions: extractBodyMentions,
		},
		wsstore.NodeFolder: {
			CanCreate: requireParentEditor, CanUpdateAttributes: requireParentEditor,
			CanDelete: requireParentAdmin, CanReact: allow,
			ExtractText: textField, ExtractMentions: noMentions,
		},
		wsstore.NodeDatabase: {
			CanCreate: requireParentEditor, CanUpdateAttributes: requireParentEditor,
			CanDelete: requireParentAdmin, CanReact: allow,
			ExtractText: textField, ExtractMentions: noMentions,
		},
		wsstore.NodeRecord: {
			CanCreate: requireParentEditor, CanUpdateAttributes: recordEdit,
			CanUpdateDocument: recordEdit, CanDelete: recordEdit, CanReact: allow,
			ExtractText: textField, ExtractMentions: noMentions,
		},
		wsstore.NodeChat: {
			CanCreate: allow, CanUpdateAttributes: requireParentAdmin,
			CanDelete: requireParentAdmin, CanReact: allow,
			ExtractText: textField, ExtractMentions: noMentions,
		},
		wsstore.NodeMessage: {
			CanCreate: allow, CanReact: allow,
			ExtractText: textField, ExtractMentions: extractBodyMentions,
		},
		wsstore.NodeFile: {
			CanCreate: requireParentEditor, CanDelete: requireParentAdmin,
			CanReact: allow, ExtractText: textField, ExtractMentions: noMentions,
		},
	}
}

// MentionExtractor adapts the registry's per-type ExtractMentions
// functions into the shape wsstore.Store.WithMentionExtractor expects, so
// the store's node_references diff reuses the same per-type rules the
// capability layer already declares.
func (r Registry) MentionExtractor() wsstore.MentionExtractor {
	return func(nodeType wsstore.NodeType, content map[string]any) []string {
		set, ok := r[nodeType]
		if !ok || set.ExtractMentions == nil {
			return nil
		}

		return set.ExtractMentions(content)
	}
}

func allow(Context) bool { return true }

// extractBodyMentions pulls @mention user ids out of a "mentions" array
// field, the shape the CRDT rich-text layer emits for inline mentions.
func extractBodyMentions(attrs map[string]any) []string {
	raw, ok := attrs["mentions"].([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(raw))
	for _, m := range raw {
		if s, ok := m.(string); ok {
			out = append(out, s)
		}
	}

	return out
}
