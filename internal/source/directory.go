package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/timmy/llavacap/internal/domain"
)

// DirectorySource discovers image/text pairs on the local filesystem.
type DirectorySource struct {
	root     string
	mode     domain.CaptionMode
	imageExt string
	textExt  string
}

// NewDirectorySource creates a source rooted at root.
// Parameters:
//   - root: directory to walk recursively.
//   - mode: ModeDirect enumerates images, ModePromptComparison enumerates text files.
//   - imageExt, textExt: extensions including the leading dot, matched case-sensitively.
//
// Returns:
//   - *DirectorySource: initialized source.
func NewDirectorySource(root string, mode domain.CaptionMode, imageExt, textExt string) *DirectorySource {
	return &DirectorySource{
		root:     root,
		mode:     mode,
		imageExt: imageExt,
		textExt:  textExt,
	}
}

// Mode returns the processing mode this source feeds.
func (s *DirectorySource) Mode() domain.CaptionMode {
	return s.mode
}

// Tasks walks the root and pairs every matching file with its sibling.
func (s *DirectorySource) Tasks(ctx context.Context) ([]domain.CaptionTask, error) {
	ext := s.textExt
	if s.mode == domain.ModeDirect {
		ext = s.imageExt
	}

	paths, err := FindFiles(ctx, s.root, ext)
	if err != nil {
		return nil, err
	}

	tasks := make([]domain.CaptionTask, len(paths))
	for i, p := range paths {
		task := domain.CaptionTask{Index: i + 1, Total: len(paths)}
		if s.mode == domain.ModeDirect {
			task.ImagePath = p
			task.TextPath = domain.SwapExt(p, s.textExt)
		} else {
			task.TextPath = p
			task.ImagePath = domain.SwapExt(p, s.imageExt)
		}
		tasks[i] = task
	}
	return tasks, nil
}

// FindFiles returns every regular file under root whose extension equals ext,
// sorted lexicographically by path.
// Parameters:
//   - ctx: checked between directory entries.
//   - root: directory to walk.
//   - ext: extension including the leading dot; compared case-sensitively.
//
// Returns:
//   - []string: matching paths.
//   - error: non-nil if root is missing, not a directory, or unreadable.
func FindFiles(ctx context.Context, root, ext string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", root)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			// Symlinked files count when they resolve to a regular file;
			// dangling links and links to directories are ignored.
			target, err := os.Stat(path)
			if err != nil || !target.Mode().IsRegular() {
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}
		if filepath.Ext(d.Name()) == ext {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.Strings(paths)
	return paths, nil
}
