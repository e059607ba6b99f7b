// gitignore.go manages .gitignore entries for local vs shared wiki data.
//
// Separated from workspace.go to isolate gitignore manipulation. A
// workspace is shared by default (pages committed with the code) or local
// (only configuration travels). Ignore and Unignore switch between the two
// by editing .wikid/.gitignore.
//
// Design: existing content and formatting are preserved; only the named
// entries are added or removed, under a header marking the local section.

package workspace

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const localHeader = "# Local wiki data (not committed)"

// LocalEntries are the .gitignore lines that make a workspace local.
var LocalEntries = []string{DBFile, "pages/", "attachments/"}

// parseGitignore reads a gitignore file and returns its lines (trimmed).
func parseGitignore(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return lines, nil
}

// Ignore adds entry to the workspace .gitignore in dir.
func Ignore(entry, dir string) error {
	gitignore := filepath.Join(dir, ".gitignore")

	lines, err := parseGitignore(gitignore)
	if err != nil {
		return err
	}
	if slices.Contains(lines, entry) {
		return nil
	}

	content, err := os.ReadFile(gitignore)
	if err != nil {
		return err
	}
	s := string(content)
	if !slices.Contains(lines, localHeader) {
		s += "\n" + localHeader + "\n"
	}
	s += entry + "\n"

	return os.WriteFile(gitignore, []byte(s), 0644)
}

// Unignore removes entry from the workspace .gitignore in dir, dropping the
// local header once its section is empty.
func Unignore(entry, dir string) error {
	gitignore := filepath.Join(dir, ".gitignore")

	content, err := os.ReadFile(gitignore)
	if err != nil {
		return err
	}

	var out []string
	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) != entry {
			out = append(out, line)
		}
	}

	result := strings.Join(out, "\n")
	if idx := strings.Index(result, localHeader); idx != -1 {
		if strings.TrimSpace(result[idx+len(localHeader):]) == "" {
			result = strings.TrimSuffix(result[:idx], "\n")
		}
	}
	return os.WriteFile(gitignore, []byte(result), 0644)
}

// IsIgnored reports whether entry is listed in the workspace .gitignore.
func IsIgnored(entry, dir string) (bool, error) {
	lines, err := parseGitignore(filepath.Join(dir, ".gitignore"))
	if err != nil {
		return false, err
	}
	return slices.Contains(lines, entry), nil
}

// IsLocal reports whether every local entry is ignored.
func (w Workspace) IsLocal() bool {
	for _, e := range LocalEntries {
		if ok, err := IsIgnored(e, w.Root); err != nil || !ok {
			return false
		}
	}
	return true
}
