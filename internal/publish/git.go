package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitConfig selects the repository and commit identity.
type GitConfig struct {
	RepoDir     string
	Push        bool
	Remote      string
	Branch      string // empty pushes the current HEAD
	AuthorName  string
	AuthorEmail string
}

// CommandRunner runs git in dir and returns combined output.
type CommandRunner func(ctx context.Context, dir string, args ...string) (string, error)

// errNothingToCommit means the staged artifacts match HEAD.
var errNothingToCommit = errors.New("nothing to commit")

// Git commits the artifacts into a working tree and optionally pushes.
type Git struct {
	cfg GitConfig
	run CommandRunner
}

func NewGit(cfg GitConfig) *Git {
	if cfg.RepoDir == "" {
		cfg.RepoDir = "."
	}
	if cfg.Remote == "" {
		cfg.Remote = "origin"
	}
	return &Git{cfg: cfg, run: execGit}
}

// WithRunner swaps the git invocation, mainly for tests.
func (g *Git) WithRunner(r CommandRunner) *Git {
	if r != nil {
		g.run = r
	}
	return g
}

func (g *Git) Name() string { return "git" }

func (g *Git) Publish(ctx context.Context, a Artifacts) error {
	paths, err := g.relPaths(a.Paths())
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return nil
	}

	if _, err := g.run(ctx, g.cfg.RepoDir, append([]string{"add", "--"}, paths...)...); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	if err := g.commit(ctx, a.Message); err != nil {
		if errors.Is(err, errNothingToCommit) {
			return nil
		}
		return err
	}
	if !g.cfg.Push {
		return nil
	}
	args := []string{"push", g.cfg.Remote}
	if g.cfg.Branch != "" {
		args = append(args, "HEAD:"+g.cfg.Branch)
	}
	if _, err := g.run(ctx, g.cfg.RepoDir, args...); err != nil {
		return fmt.Errorf("git push: %w", err)
	}
	return nil
}

func (g *Git) commit(ctx context.Context, msg string) error {
	// diff --cached --quiet exits 0 when the index matches HEAD.
	if _, err := g.run(ctx, g.cfg.RepoDir, "diff", "--cached", "--quiet"); err == nil {
		return errNothingToCommit
	}
	if strings.TrimSpace(msg) == "" {
		msg = "Update height data"
	}
	var args []string
	if g.cfg.AuthorName != "" {
		args = append(args, "-c", "user.name="+g.cfg.AuthorName)
	}
	if g.cfg.AuthorEmail != "" {
		args = append(args, "-c", "user.email="+g.cfg.AuthorEmail)
	}
	args = append(args, "commit", "-m", msg)
	if _, err := g.run(ctx, g.cfg.RepoDir, args...); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}
	return nil
}

// relPaths makes artifact paths relative to the repository.
func (g *Git) relPaths(paths []string) ([]string, error) {
	root, err := filepath.Abs(g.cfg.RepoDir)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("git: %s is outside %s", p, g.cfg.RepoDir)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out, nil
}

func execGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.String(), fmt.Errorf("%w: %s", err, strings.TrimSpace(out.String()))
	}
	return out.String(), nil
}
