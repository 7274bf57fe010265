package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/kunaaa123/ai-mcp-hub/internal/auth"
)

const (
	// maxReadBytes caps file reads fed back to the model.
	maxReadBytes = 256 * 1024
	// maxGlobMatches caps fs_glob result lists.
	maxGlobMatches = 500
)

// resolveFSPath joins a user-supplied path with the sandbox root and
// rejects escapes.
func resolveFSPath(root, path string) (string, error) {
	if path == "" {
		path = "."
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, abs)
	}
	abs = filepath.Clean(abs)

	rootClean := filepath.Clean(root)
	if abs != rootClean && !strings.HasPrefix(abs, rootClean+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the allowed root", path)
	}
	return abs, nil
}

// FSReadTool reads a file under the allowed root.
type FSReadTool struct {
	root string
}

// NewFSReadTool creates a new FSReadTool instance.
func NewFSReadTool(root string) *FSReadTool {
	return &FSReadTool{root: root}
}

func (t *FSReadTool) Name() string { return "fs_read_file" }
func (t *FSReadTool) Description() string {
	return "Reads a text file from the allowed filesystem root."
}

func (t *FSReadTool) Spec() *Spec {
	return &Spec{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"path": {Type: "string", Description: "File path, relative to the allowed root or absolute within it."},
			},
			Required: []string{"path"},
		},
		RequiredRoles:     auth.All(),
		SafeForProduction: true,
	}
}

func (t *FSReadTool) Validate(args map[string]any) error {
	return ValidateAgainst(t.Spec().InputSchema, args)
}

func (t *FSReadTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	path, _ := GetString(args, "path")

	abs, err := resolveFSPath(t.root, path)
	if err != nil {
		return NewErrorResult(err.Error()), nil
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return NewErrorResult(fmt.Sprintf("file not found: %s", path)), nil
		}
		return NewErrorResult(fmt.Sprintf("error reading file: %s", err)), nil
	}

	truncated := false
	if len(data) > maxReadBytes {
		data = data[:maxReadBytes]
		truncated = true
	}

	content := string(data)
	if truncated {
		content += "\n... (truncated)"
	}
	return NewSuccessResult(content), nil
}

// FSWriteTool writes a file under the allowed root and reports a diff of
// the change.
type FSWriteTool struct {
	root string
}

// NewFSWriteTool creates a new FSWriteTool instance.
func NewFSWriteTool(root string) *FSWriteTool {
	return &FSWriteTool{root: root}
}

func (t *FSWriteTool) Name() string { return "fs_write_file" }
func (t *FSWriteTool) Description() string {
	return "Writes a text file under the allowed filesystem root, creating parent directories as needed."
}

func (t *FSWriteTool) Spec() *Spec {
	return &Spec{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"path":    {Type: "string", Description: "File path, relative to the allowed root."},
				"content": {Type: "string", Description: "The full new file content."},
			},
			Required: []string{"path", "content"},
		},
		RequiredRoles:     []auth.Role{auth.RoleDev, auth.RoleOperator, auth.RoleAdmin},
		SafeForProduction: false,
	}
}

func (t *FSWriteTool) Validate(args map[string]any) error {
	return ValidateAgainst(t.Spec().InputSchema, args)
}

func (t *FSWriteTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	path, _ := GetString(args, "path")
	content, _ := GetString(args, "content")

	abs, err := resolveFSPath(t.root, path)
	if err != nil {
		return NewErrorResult(err.Error()), nil
	}

	old, _ := os.ReadFile(abs)

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return NewErrorResult(fmt.Sprintf("error creating directories: %s", err)), nil
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return NewErrorResult(fmt.Sprintf("error writing file: %s", err)), nil
	}

	return NewSuccessResultWithData(
		fmt.Sprintf("wrote %d bytes to %s", len(content), path),
		map[string]any{
			"path":  path,
			"bytes": len(content),
			"diff":  summarizeDiff(string(old), content),
		},
	), nil
}

// summarizeDiff renders a compact description of the change.
func summarizeDiff(oldText, newText string) string {
	if oldText == newText {
		return "(no change)"
	}
	if oldText == "" {
		return "(new file)"
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldText, newText, false)
	dmp.DiffCleanupSemantic(diffs)

	var inserted, deleted int
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			inserted += len(d.Text)
		case diffmatchpatch.DiffDelete:
			deleted += len(d.Text)
		}
	}
	return fmt.Sprintf("+%d/-%d chars", inserted, deleted)
}

// FSListTool lists directory contents under the allowed root.
type FSListTool struct {
	root string
}

// NewFSListTool creates a new FSListTool instance.
func NewFSListTool(root string) *FSListTool {
	return &FSListTool{root: root}
}

func (t *FSListTool) Name() string { return "fs_list_dir" }
func (t *FSListTool) Description() string {
	return "Lists the contents of a directory under the allowed filesystem root."
}

func (t *FSListTool) Spec() *Spec {
	return &Spec{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"path": {Type: "string", Description: "Directory path. Defaults to the allowed root."},
			},
		},
		RequiredRoles:     auth.All(),
		SafeForProduction: true,
	}
}

func (t *FSListTool) Validate(args map[string]any) error {
	return ValidateAgainst(t.Spec().InputSchema, args)
}

func (t *FSListTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	path, _ := GetString(args, "path")

	abs, err := resolveFSPath(t.root, path)
	if err != nil {
		return NewErrorResult(err.Error()), nil
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return NewErrorResult(fmt.Sprintf("directory not found: %s", path)), nil
		}
		return NewErrorResult(fmt.Sprintf("error reading directory: %s", err)), nil
	}

	if len(entries) == 0 {
		return NewSuccessResult("(empty)"), nil
	}

	var lines []string
	for _, entry := range entries {
		if entry.IsDir() {
			lines = append(lines, entry.Name()+"/")
		} else {
			lines = append(lines, entry.Name())
		}
	}
	return NewSuccessResult(strings.Join(lines, "\n")), nil
}

// FSGlobTool finds files matching a doublestar pattern.
type FSGlobTool struct {
	root string
}

// NewFSGlobTool creates a new FSGlobTool instance.
func NewFSGlobTool(root string) *FSGlobTool {
	return &FSGlobTool{root: root}
}

func (t *FSGlobTool) Name() string { return "fs_glob" }
func (t *FSGlobTool) Description() string {
	return "Finds files under the allowed root matching a glob pattern. Use ** for recursive matches."
}

func (t *FSGlobTool) Spec() *Spec {
	return &Spec{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"pattern": {Type: "string", Description: "Glob pattern, e.g. '**/*.go'."},
			},
			Required: []string{"pattern"},
		},
		RequiredRoles:     auth.All(),
		SafeForProduction: true,
	}
}

func (t *FSGlobTool) Validate(args map[string]any) error {
	return ValidateAgainst(t.Spec().InputSchema, args)
}

func (t *FSGlobTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	pattern, _ := GetString(args, "pattern")

	matches, err := doublestar.Glob(os.DirFS(t.root), pattern)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("invalid pattern: %s", err)), nil
	}
	if len(matches) == 0 {
		return NewSuccessResult("No matches found."), nil
	}

	truncated := false
	if len(matches) > maxGlobMatches {
		matches = matches[:maxGlobMatches]
		truncated = true
	}

	content := strings.Join(matches, "\n")
	if truncated {
		content += "\n... (truncated)"
	}
	return NewSuccessResultWithData(content, matches), nil
}
