// Package pathresolve is the L0 path service: it centralises resolution of
// every on-disk path the engine touches, per §5's "file blobs live under a
// per-workspace directory; path resolution is centralised through the path
// service to avoid collisions" and §6's persisted state layout. Nothing
// outside this package should build one of these paths by hand.
package pathresolve

import (
	"os"
	"path/filepath"
	"runtime"
)

// Platform identifiers, grounded on internal/config/paths.go's XDG/macOS
// split.
const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
)

const appDirName = "workspace-engine"

// Resolver resolves every path under one app root (§6 "Persisted state
// layout"). The root defaults to the platform app-data directory but can be
// overridden (tests, portable installs).
type Resolver struct {
	root string
}

// New returns a Resolver rooted at root. Pass "" to use DefaultAppDir().
func New(root string) *Resolver {
	if root == "" {
		root = DefaultAppDir()
	}

	return &Resolver{root: root}
}

// DefaultAppDir returns the platform-specific root directory for all
// workspace-engine state, respecting XDG_DATA_HOME on Linux.
func DefaultAppDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, appDirName)
		}
		return filepath.Join(home, ".local", "share", appDirName)
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appDirName)
	default:
		return filepath.Join(home, ".config", appDirName)
	}
}

// Root returns the app root directory this Resolver is rooted at.
func (r *Resolver) Root() string { return r.root }

// AppDB returns the path to the single App DB file.
func (r *Resolver) AppDB() string {
	return filepath.Join(r.root, "app.db")
}

// AccountDir returns the root directory for one account's state.
func (r *Resolver) AccountDir(accountID string) string {
	return filepath.Join(r.root, "accounts", accountID)
}

// AccountDB returns the path to one account's Account DB file.
func (r *Resolver) AccountDB(accountID string) string {
	return filepath.Join(r.AccountDir(accountID), "account.db")
}

// WorkspaceDir returns the root directory for one workspace's state.
func (r *Resolver) WorkspaceDir(accountID, workspaceID string) string {
	return filepath.Join(r.AccountDir(accountID), "workspaces", workspaceID)
}

// WorkspaceDB returns the path to one workspace's Workspace DB file.
func (r *Resolver) WorkspaceDB(accountID, workspaceID string) string {
	return filepath.Join(r.WorkspaceDir(accountID, workspaceID), "workspace.db")
}

// FilesDir returns the directory file blobs for one workspace live under.
func (r *Resolver) FilesDir(accountID, workspaceID string) string {
	return filepath.Join(r.WorkspaceDir(accountID, workspaceID), "files")
}

// FileBlob returns the path to one file node's blob, named by id and
// extension (the fileId.ext layout from §6).
func (r *Resolver) FileBlob(accountID, workspaceID, fileID, ext string) string {
	name := fileID
	if ext != "" {
		name += "." + ext
	}

	return filepath.Join(r.FilesDir(accountID, workspaceID), name)
}

// AvatarsDir returns the directory avatar blobs for one account live under.
func (r *Resolver) AvatarsDir(accountID string) string {
	return filepath.Join(r.AccountDir(accountID), "avatars")
}

// AvatarBlob returns the path to one avatar blob.
func (r *Resolver) AvatarBlob(accountID, avatarID string) string {
	return filepath.Join(r.AvatarsDir(accountID), avatarID)
}

// TempDir returns the scratch-space directory, whose contents older than
// 24h the cleanup task deletes (§5 "Cleanup").
func (r *Resolver) TempDir() string {
	return filepath.Join(r.root, "temp")
}

// EnsureDirs creates every directory this Resolver's paths depend on for
// the given account/workspace pair (idempotent, 0700 like the teacher's
// sync-dir permissions default).
func (r *Resolver) EnsureDirs(accountID, workspaceID string) error {
	dirs := []string{
		r.root,
		r.AccountDir(accountID),
		r.AvatarsDir(accountID),
		r.TempDir(),
	}

	if workspaceID != "" {
		dirs = append(dirs, r.WorkspaceDir(accountID, workspaceID), r.FilesDir(accountID, workspaceID))
	}

	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}

	return nil
}
