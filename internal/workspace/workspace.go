// Package workspace owns the generated project on disk: scaffolding, the two
// artifact write targets, the design document, and the cross-process lock
// that keeps one loop per workspace.
package workspace

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/harrison/fixloop/internal/filelock"
	"github.com/harrison/fixloop/internal/supervisor"
)

// CommandExecutor runs scaffold commands. *supervisor.Supervisor satisfies it.
type CommandExecutor interface {
	Execute(ctx context.Context, inv supervisor.Invocation) (supervisor.Result, error)
}

// Logger receives workspace progress messages.
type Logger interface {
	LogInfo(message string)
	LogWarn(message string)
}

// Options configures scaffolding.
type Options struct {
	AppType        string
	SkipScaffold   bool
	CommandTimeout time.Duration
	MaxRetries     int
	LockRetryDelay time.Duration
}

// Workspace manages one generated project directory.
type Workspace struct {
	layout   Layout
	opts     Options
	executor CommandExecutor
	logger   Logger // can be nil
	lock     *filelock.FileLock
	markdown goldmark.Markdown
}

// New creates a Workspace over layout. executor may be nil when scaffolding
// is skipped.
func New(layout Layout, opts Options, executor CommandExecutor, logger Logger) *Workspace {
	if opts.LockRetryDelay <= 0 {
		opts.LockRetryDelay = 100 * time.Millisecond
	}
	return &Workspace{
		layout:   layout,
		opts:     opts,
		executor: executor,
		logger:   logger,
		lock:     filelock.NewFileLock(layout.LockFile()),
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Layout returns the resolved paths.
func (w *Workspace) Layout() Layout {
	return w.layout
}

// Lock takes the exclusive workspace lock, waiting until ctx is done.
func (w *Workspace) Lock(ctx context.Context) error {
	if err := w.lock.Acquire(ctx, w.opts.LockRetryDelay); err != nil {
		return fmt.Errorf("workspace %s is in use: %w", w.layout.Root, err)
	}
	return nil
}

// Unlock releases the workspace lock.
func (w *Workspace) Unlock() error {
	if !w.lock.Locked() {
		return ErrNotLocked
	}
	return w.lock.Unlock()
}

// Cleanup removes any previous output under the workspace root.
func (w *Workspace) Cleanup() error {
	if err := os.RemoveAll(w.layout.Root); err != nil {
		return fmt.Errorf("failed to delete output directory %s: %w", w.layout.Root, err)
	}
	return nil
}

// Setup prepares the workspace for a new task. Project directories from a
// previous task are removed and the projects are scaffolded again through the
// executor with ThrowOnNonZero, so a failing step aborts setup.
func (w *Workspace) Setup(ctx context.Context) error {
	if err := os.MkdirAll(w.layout.Root, 0755); err != nil {
		return fmt.Errorf("failed to create workspace %s: %w", w.layout.Root, err)
	}

	if w.opts.SkipScaffold {
		for _, dir := range []string{w.layout.CodeDir, w.layout.TestDir} {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}
		return nil
	}

	if w.executor == nil {
		return fmt.Errorf("workspace scaffolding requires a command executor")
	}

	if err := w.resetProjects(); err != nil {
		return err
	}

	if w.logger != nil {
		w.logger.LogInfo(fmt.Sprintf("Creating %s project in %s", strings.ToLower(w.opts.AppType), w.layout.Root))
	}

	for i, step := range ScaffoldSteps(w.layout, w.opts.AppType) {
		_, err := w.executor.Execute(ctx, supervisor.Invocation{
			Dir:            step.Dir,
			CommandLine:    step.CommandLine,
			Timeout:        w.opts.CommandTimeout,
			MaxRetries:     w.opts.MaxRetries,
			ThrowOnNonZero: true,
		})
		if err != nil {
			return &ScaffoldError{Step: step.CommandLine, Err: err}
		}

		// The test project exists after the second step.
		if i == 1 && strings.EqualFold(w.opts.AppType, AppWinForms) {
			if err := PatchWinFormsTestProject(w.layout); err != nil {
				return &ScaffoldError{Step: "patch test project", Err: err}
			}
		}
	}
	return nil
}

func (w *Workspace) resetProjects() error {
	stale := []string{
		w.layout.CodeDir,
		w.layout.TestDir,
		filepath.Join(w.layout.Root, SolutionName+".sln"),
	}
	for _, path := range stale {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

// WriteArtifacts overwrites the code and test files. Any failure is returned
// as *ArtifactWriteError.
func (w *Workspace) WriteArtifacts(code, tests string) error {
	err := filelock.LockAndWrite(w.layout.artifactLockFile(),
		filelock.Write{Path: w.layout.CodeFile, Data: []byte(code)},
		filelock.Write{Path: w.layout.TestFile, Data: []byte(tests)},
	)
	if err != nil {
		return &ArtifactWriteError{Path: w.layout.Root, Err: err}
	}
	return nil
}

// WriteDesignDoc writes the Markdown design document and its HTML rendering
// to the workspace root, returning both paths.
func (w *Workspace) WriteDesignDoc(markdown string) (string, string, error) {
	html, err := w.RenderHTML(markdown)
	if err != nil {
		return "", "", err
	}

	if err := filelock.AtomicWrite(w.layout.DesignDoc, []byte(markdown)); err != nil {
		return "", "", fmt.Errorf("failed to write design document: %w", err)
	}
	if err := filelock.AtomicWrite(w.layout.DesignDocHTML, []byte(html)); err != nil {
		return w.layout.DesignDoc, "", fmt.Errorf("failed to write design document html: %w", err)
	}
	return w.layout.DesignDoc, w.layout.DesignDocHTML, nil
}

// RenderHTML converts a Markdown document into a standalone HTML page.
func (w *Workspace) RenderHTML(markdown string) (string, error) {
	var body bytes.Buffer
	if err := w.markdown.Convert([]byte(markdown), &body); err != nil {
		return "", fmt.Errorf("failed to render design document: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>Design Doc</title>\n</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.String(), nil
}
