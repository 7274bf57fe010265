package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/kunaaa123/ai-mcp-hub/internal/auth"
)

// resolveRepoPath returns a usable repository path. A missing, non-
// directory, or non-repository path silently falls back to the process
// working directory.
func resolveRepoPath(args map[string]any) string {
	path, _ := GetString(args, "repo_path")
	if isGitRepo(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

func isGitRepo(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	_, err = os.Stat(filepath.Join(path, ".git"))
	return err == nil
}

// runGit executes a git subcommand in the given repository.
func runGit(ctx context.Context, repo string, gitArgs ...string) (string, error) {
	full := append([]string{"-C", repo}, gitArgs...)
	cmd := exec.CommandContext(ctx, "git", full...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", gitArgs[0], msg)
	}
	return stdout.String(), nil
}

func gitRepoSchema(extra map[string]*Schema) *Schema {
	props := map[string]*Schema{
		"repo_path": {
			Type:        "string",
			Description: "Repository path. Falls back to the working directory when missing or invalid.",
		},
	}
	for k, v := range extra {
		props[k] = v
	}
	return &Schema{Type: "object", Properties: props}
}

// GitStatusTool reports the working tree status.
type GitStatusTool struct{}

// NewGitStatusTool creates a new GitStatusTool instance.
func NewGitStatusTool() *GitStatusTool { return &GitStatusTool{} }

func (t *GitStatusTool) Name() string        { return "git_status" }
func (t *GitStatusTool) Description() string { return "Shows the git working tree status." }

func (t *GitStatusTool) Spec() *Spec {
	return &Spec{
		Name:              t.Name(),
		Description:       t.Description(),
		InputSchema:       gitRepoSchema(nil),
		RequiredRoles:     auth.All(),
		SafeForProduction: true,
	}
}

func (t *GitStatusTool) Validate(args map[string]any) error {
	return ValidateAgainst(t.Spec().InputSchema, args)
}

func (t *GitStatusTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	out, err := runGit(ctx, resolveRepoPath(args), "status", "--short", "--branch")
	if err != nil {
		return NewErrorResult(err.Error()), nil
	}
	if strings.TrimSpace(out) == "" {
		return NewSuccessResult("(clean)"), nil
	}
	return NewSuccessResult(out), nil
}

// GitLogTool shows recent commits.
type GitLogTool struct{}

// NewGitLogTool creates a new GitLogTool instance.
func NewGitLogTool() *GitLogTool { return &GitLogTool{} }

func (t *GitLogTool) Name() string        { return "git_log" }
func (t *GitLogTool) Description() string { return "Shows recent commits, newest first." }

func (t *GitLogTool) Spec() *Spec {
	return &Spec{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: gitRepoSchema(map[string]*Schema{
			"limit": {Type: "integer", Description: "Number of commits to show. Defaults to 10."},
		}),
		RequiredRoles:     auth.All(),
		SafeForProduction: true,
	}
}

func (t *GitLogTool) Validate(args map[string]any) error {
	return ValidateAgainst(t.Spec().InputSchema, args)
}

func (t *GitLogTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	limit := GetIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		limit = 10
	}

	out, err := runGit(ctx, resolveRepoPath(args), "log", fmt.Sprintf("-%d", limit), "--oneline", "--decorate")
	if err != nil {
		return NewErrorResult(err.Error()), nil
	}
	return NewSuccessResult(out), nil
}

// GitDiffTool shows uncommitted changes.
type GitDiffTool struct{}

// NewGitDiffTool creates a new GitDiffTool instance.
func NewGitDiffTool() *GitDiffTool { return &GitDiffTool{} }

func (t *GitDiffTool) Name() string        { return "git_diff" }
func (t *GitDiffTool) Description() string { return "Shows uncommitted changes in the working tree." }

func (t *GitDiffTool) Spec() *Spec {
	return &Spec{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: gitRepoSchema(map[string]*Schema{
			"staged": {Type: "boolean", Description: "Show the staged diff instead of the working tree diff."},
		}),
		RequiredRoles:     auth.All(),
		SafeForProduction: true,
	}
}

func (t *GitDiffTool) Validate(args map[string]any) error {
	return ValidateAgainst(t.Spec().InputSchema, args)
}

func (t *GitDiffTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	gitArgs := []string{"diff"}
	if GetBoolDefault(args, "staged", false) {
		gitArgs = append(gitArgs, "--cached")
	}

	out, err := runGit(ctx, resolveRepoPath(args), gitArgs...)
	if err != nil {
		return NewErrorResult(err.Error()), nil
	}
	if strings.TrimSpace(out) == "" {
		return NewSuccessResult("(no changes)"), nil
	}
	return NewSuccessResult(out), nil
}

// GitBranchTool lists branches.
type GitBranchTool struct{}

// NewGitBranchTool creates a new GitBranchTool instance.
func NewGitBranchTool() *GitBranchTool { return &GitBranchTool{} }

func (t *GitBranchTool) Name() string        { return "git_branch" }
func (t *GitBranchTool) Description() string { return "Lists local branches, marking the current one." }

func (t *GitBranchTool) Spec() *Spec {
	return &Spec{
		Name:              t.Name(),
		Description:       t.Description(),
		InputSchema:       gitRepoSchema(nil),
		RequiredRoles:     auth.All(),
		SafeForProduction: true,
	}
}

func (t *GitBranchTool) Validate(args map[string]any) error {
	return ValidateAgainst(t.Spec().InputSchema, args)
}

func (t *GitBranchTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	out, err := runGit(ctx, resolveRepoPath(args), "branch", "--list")
	if err != nil {
		return NewErrorResult(err.Error()), nil
	}
	return NewSuccessResult(out), nil
}
