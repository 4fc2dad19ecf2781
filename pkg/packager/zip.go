package packager

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/lofty-sh/lofty/pkg/descriptor"
)

// Names never shipped inside an artifact regardless of options.
var builtinExclusions = []string{
	descriptor.DefaultFileName,
	descriptor.ProjectFileName,
}

func excluded(relPath string, ignore []string) bool {
	base := filepath.Base(relPath)
	for _, name := range builtinExclusions {
		if relPath == name {
			return true
		}
	}
	if strings.HasPrefix(base, ".") {
		return true
	}
	for _, pattern := range ignore {
		if ok, _ := filepath.Match(pattern, relPath); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// writeZip archives sourceDir into a zip at dest. Walk order is lexical, so
// identical trees produce identically ordered archives. File modes are
// preserved so handler binaries keep their exec bit.
func writeZip(ctx context.Context, dest, sourceDir string, ignore []string) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating artifact: %w", err)
	}
	defer out.Close()

	w := zip.NewWriter(out)
	err = filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if excluded(rel, ignore) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		header.Method = zip.Deflate
		entry, err := w.CreateHeader(header)
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(entry, src)
		return err
	})
	if err != nil {
		_ = w.Close()
		return fmt.Errorf("archiving %s: %w", sourceDir, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing artifact: %w", err)
	}
	return nil
}
