// Package permission implements the role-based capability model of §4.9:
// per-node-type capability sets, workspace and node role hierarchies, and
// effective-role resolution by walking the ancestor tree.
package permission

// WorkspaceRole is one of the strict workspace-level roles.
type WorkspaceRole string

const (
	WorkspaceGuest        WorkspaceRole = "guest"
	WorkspaceCollaborator WorkspaceRole = "collaborator"
	WorkspaceAdmin        WorkspaceRole = "admin"
	WorkspaceOwner        WorkspaceRole = "owner"
)

var workspaceHierarchy = []WorkspaceRole{
	WorkspaceGuest, WorkspaceCollaborator, WorkspaceAdmin, WorkspaceOwner,
}

// NodeRole is one of the strict node-level roles.
type NodeRole string

const (
	NodeViewer       NodeRole = "viewer"
	NodeCollaborator NodeRole = "collaborator"
	NodeEditor       NodeRole = "editor"
	NodeAdmin        NodeRole = "admin"
)

var nodeHierarchy = []NodeRole{
	NodeViewer, NodeCollaborator, NodeEditor, NodeAdmin,
}

// HasWorkspaceRole reports whether current is at least as privileged as
// target in the workspace hierarchy. Unknown roles lack all privileges
// (§8 property 8: hasRole is monotonic in the hierarchy index).
func HasWorkspaceRole(current, target WorkspaceRole) bool {
	return hasRole(workspaceHierarchy, string(current), string(target))
}

// HasNodeRole reports whether current is at least as privileged as target
// in the node hierarchy.
func HasNodeRole(current, target NodeRole) bool {
	return hasRole(nodeHierarchy, string(current), string(target))
}

func hasRole[T ~string](hierarchy []T, current, target string) bool {
	ci, cok := indexOf(hierarchy, current)
	ti, tok := indexOf(hierarchy, target)

	if !cok || !tok {
		return false
	}

	return ci >= ti
}

func indexOf[T ~string](hierarchy []T, value string) (int, bool) {
	for i, v := range hierarchy {
		if string(v) == value {
			return i, true
		}
	}

	return 0, false
}
