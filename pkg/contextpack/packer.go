// Package contextpack implements the Context Packer: given a scope
// descriptor and a working directory, it returns a bounded text blob for
// the judge. Only the interface is load-bearing — context packing is kept
// an external collaborator — but a default implementation is provided so
// the engine is runnable end-to-end.
package contextpack

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/codeready-toolchain/ganaudit/pkg/session"
)

// DefaultCharCap bounds the total size of a returned blob.
const DefaultCharCap = 50_000

// DefaultFileCapBytes bounds how much of any single file is read.
const DefaultFileCapBytes = 1 << 20 // 1 MiB

// skipDirs are directory names the workspace walk never descends into.
var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true,
	".mcp-gan-state": true, "dist": true, "build": true, ".venv": true,
}

// Pack is the bounded text blob a Packer produces, plus bookkeeping about
// whether it degraded to a fallback.
type Pack struct {
	Text     string
	Fallback bool
	Note     string
}

// Packer is the Context Packer's contract: given a session config (for
// scope/paths) and a working directory, return a bounded blob. Must never
// fail — unreadable input degrades to a marked fallback blob.
type Packer interface {
	Pack(ctx context.Context, cfg session.Config, workDir string) Pack
}

// DefaultPacker implements scope-driven packing: `diff` shells out to git,
// `paths` concatenates named files, `workspace` walks the working
// directory, all under the same character/file-size caps.
type DefaultPacker struct {
	CharCap     int
	FileCapByte int
}

// New returns a DefaultPacker using the documented caps.
func New() *DefaultPacker {
	return &DefaultPacker{CharCap: DefaultCharCap, FileCapByte: DefaultFileCapBytes}
}

func (p *DefaultPacker) charCap() int {
	if p.CharCap > 0 {
		return p.CharCap
	}
	return DefaultCharCap
}

func (p *DefaultPacker) fileCap() int {
	if p.FileCapByte > 0 {
		return p.FileCapByte
	}
	return DefaultFileCapBytes
}

// Pack implements Packer.
func (p *DefaultPacker) Pack(ctx context.Context, cfg session.Config, workDir string) Pack {
	switch cfg.Scope {
	case session.ScopePaths:
		return p.packPaths(cfg.Paths, workDir)
	case session.ScopeWorkspace:
		return p.packWorkspace(workDir)
	default: // session.ScopeDiff and anything unrecognized
		return p.packDiff(ctx, workDir)
	}
}

func (p *DefaultPacker) packDiff(ctx context.Context, workDir string) Pack {
	cmd := exec.CommandContext(ctx, "git", "diff")
	if workDir != "" {
		cmd.Dir = workDir
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = nil

	if err := cmd.Run(); err != nil {
		return Pack{Text: "", Fallback: true, Note: fmt.Sprintf("git diff unavailable: %v", err)}
	}

	text := capString(out.String(), p.charCap())
	if text == "" {
		return Pack{Text: "", Fallback: true, Note: "git diff produced no output"}
	}
	return Pack{Text: text}
}

func (p *DefaultPacker) packPaths(paths []string, workDir string) Pack {
	if len(paths) == 0 {
		return Pack{Text: "", Fallback: true, Note: "scope=paths with no paths configured"}
	}

	var b strings.Builder
	var unreadable []string
	for _, rel := range paths {
		full := rel
		if workDir != "" && !filepath.IsAbs(rel) {
			full = filepath.Join(workDir, rel)
		}
		data, err := readCapped(full, p.fileCap())
		if err != nil {
			unreadable = append(unreadable, rel)
			continue
		}
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", rel, data)
		if b.Len() >= p.charCap() {
			break
		}
	}

	text := capString(b.String(), p.charCap())
	if text == "" {
		return Pack{Text: "", Fallback: true, Note: fmt.Sprintf("none of the configured paths were readable: %v", unreadable)}
	}
	pack := Pack{Text: text}
	if len(unreadable) > 0 {
		pack.Note = fmt.Sprintf("skipped unreadable paths: %v", unreadable)
	}
	return pack
}

func (p *DefaultPacker) packWorkspace(workDir string) Pack {
	if workDir == "" {
		workDir = "."
	}

	var b strings.Builder
	err := filepath.Walk(workDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries, never fail the walk
		}
		if info.IsDir() {
			if skipDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if b.Len() >= p.charCap() {
			return filepath.SkipAll
		}
		data, rerr := readCapped(path, p.fileCap())
		if rerr != nil {
			return nil
		}
		rel, _ := filepath.Rel(workDir, path)
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", rel, data)
		return nil
	})

	text := capString(b.String(), p.charCap())
	if text == "" {
		note := "workspace walk produced no readable content"
		if err != nil {
			note = fmt.Sprintf("workspace walk failed: %v", err)
		}
		return Pack{Text: "", Fallback: true, Note: note}
	}
	return Pack{Text: text}
}

func readCapped(path string, cap int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, cap)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return "", err
	}
	return string(buf[:n]), nil
}

func capString(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
