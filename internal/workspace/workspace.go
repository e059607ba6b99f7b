// Package workspace provides initialisation and discovery of wikid
// workspaces.
//
// A workspace is a directory holding a .wikid directory. Inside it:
//   - wikid.db: the content repository and the reference index
//   - pages/ and attachments/: the flat-file stores (default locations)
//   - cache/: the badger cache when cache.backend is badger
//   - config.yaml: local configuration
//
// Discovery mirrors git: starting from the current directory, walk up until
// a .wikid directory is found or the filesystem root is reached.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jpl-au/wikid/internal/repository"
)

const (
	// Dir is the workspace directory name.
	Dir = ".wikid"
	// DBFile is the workspace database holding the node tree and the
	// reference index.
	DBFile = "wikid.db"
)

// ErrNotInitialised is returned when no workspace is found.
var ErrNotInitialised = errors.New("wikid not initialised (run 'wikid init')")

// Workspace is a discovered .wikid directory.
type Workspace struct {
	// Root is the absolute path of the .wikid directory.
	Root string
}

// DBPath returns the path of the workspace database.
func (w Workspace) DBPath() string {
	return filepath.Join(w.Root, DBFile)
}

// Resolve returns p unchanged when absolute, otherwise joined to Root.
// Configured store directories are relative to the workspace.
func (w Workspace) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(w.Root, p)
}

// Init creates a workspace in dir (current directory when empty).
//
// Init creates the database and the default store directories; it does not
// write config, which "wikid config --local" manages. With local set, the
// page data is listed in .gitignore so only configuration is shared.
func Init(force bool, local bool, dir string) (Workspace, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(filepath.Join(dir, Dir))
	if err != nil {
		return Workspace{}, fmt.Errorf("resolve directory: %w", err)
	}
	w := Workspace{Root: abs}

	if _, err := os.Stat(w.DBPath()); err == nil {
		if !force {
			return w, fmt.Errorf("workspace %s already exists (use --force to reinitialise)", abs)
		}
		for _, f := range []string{DBFile, DBFile + "-wal", DBFile + "-shm"} {
			if err := os.Remove(filepath.Join(abs, f)); err != nil && !errors.Is(err, os.ErrNotExist) {
				return w, fmt.Errorf("remove database: %w", err)
			}
		}
	}

	for _, d := range []string{abs, filepath.Join(abs, "pages"), filepath.Join(abs, "attachments")} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return w, fmt.Errorf("create directory: %w", err)
		}
	}

	repo, err := repository.Open(w.DBPath())
	if err != nil {
		return w, fmt.Errorf("open repository: %w", err)
	}
	if err := repo.Close(); err != nil {
		return w, fmt.Errorf("close repository: %w", err)
	}

	// Only written on first init so custom entries survive --force.
	gitignore := filepath.Join(abs, ".gitignore")
	if _, err := os.Stat(gitignore); errors.Is(err, os.ErrNotExist) {
		s := `# wikid - ignore caches and local config
# Pages, attachments and wikid.db are the wiki and should be committed
cache/
config.yaml
*.db-wal
*.db-shm
`
		if err := os.WriteFile(gitignore, []byte(s), 0644); err != nil {
			return w, fmt.Errorf("write gitignore: %w", err)
		}
	}

	if local {
		for _, entry := range LocalEntries {
			if err := Ignore(entry, abs); err != nil {
				return w, fmt.Errorf("ignore %s: %w", entry, err)
			}
		}
	}
	return w, nil
}

// Discover walks up from the working directory looking for a workspace.
func Discover() (Workspace, error) {
	dir, err := os.Getwd()
	if err != nil {
		return Workspace{}, fmt.Errorf("get working directory: %w", err)
	}

	for {
		root := filepath.Join(dir, Dir)
		if info, err := os.Stat(root); err == nil && info.IsDir() {
			return Workspace{Root: root}, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Workspace{}, ErrNotInitialised
		}
		dir = parent
	}
}
