package workspace

import (
	"fmt"
	"path/filepath"

	"github.com/harrison/fixloop/internal/config"
)

// Design document file names, written to the workspace root.
const (
	DesignDocName     = "DesignDocument.md"
	DesignDocHTMLName = "DesignDocument.html"
	SolutionName      = "AIProjects"
)

// Layout holds the absolute paths of everything the loop reads or writes.
type Layout struct {
	Root          string
	CodeProject   string // Name of the code project directory
	TestProject   string // Name of the test project directory
	CodeDir       string
	TestDir       string
	CodeFile      string
	TestFile      string
	DesignDoc     string
	DesignDocHTML string
}

// NewLayout resolves the workspace configuration into absolute paths.
func NewLayout(cfg config.WorkspaceConfig) (Layout, error) {
	if cfg.Dir == "" {
		return Layout{}, fmt.Errorf("workspace dir is required")
	}
	root, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return Layout{}, fmt.Errorf("failed to resolve workspace dir %s: %w", cfg.Dir, err)
	}

	codeDir := filepath.Join(root, cfg.CodeProject)
	testDir := filepath.Join(root, cfg.TestProject)

	return Layout{
		Root:          root,
		CodeProject:   cfg.CodeProject,
		TestProject:   cfg.TestProject,
		CodeDir:       codeDir,
		TestDir:       testDir,
		CodeFile:      filepath.Join(codeDir, cfg.CodeFile),
		TestFile:      filepath.Join(testDir, cfg.TestFile),
		DesignDoc:     filepath.Join(root, DesignDocName),
		DesignDocHTML: filepath.Join(root, DesignDocHTMLName),
	}, nil
}

// LockFile is the cross-process lock guarding the workspace. It lives next
// to the root so that cleaning the root never removes a held lock.
func (l Layout) LockFile() string {
	return filepath.Join(filepath.Dir(l.Root), "."+filepath.Base(l.Root)+".lock")
}

func (l Layout) artifactLockFile() string {
	return filepath.Join(l.Root, ".artifacts.lock")
}
