package docs

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ArchivePath is where Archive writes the bundle: the output directory
// with a .zip extension.
func (g *Generator) ArchivePath() string {
	return filepath.Clean(g.config.OutputDir) + ".zip"
}

// Archive bundles the output directory into a zip file. Entries are
// rooted at the directory's base name so the archive unpacks into a
// single folder.
func (g *Generator) Archive() (string, error) {
	root := filepath.Clean(g.config.OutputDir)
	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("failed to read output directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("output path %s is not a directory", root)
	}

	target := g.ArchivePath()
	tmp := target + ".tmp"
	if err := writeArchive(tmp, root); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to move archive into place: %w", err)
	}
	return target, nil
}

func writeArchive(path, root string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	zw := zip.NewWriter(f)

	base := filepath.Base(root)
	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(filepath.Join(base, rel))
		if d.IsDir() {
			_, err := zw.Create(name + "/")
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return addFile(zw, p, name)
	})

	closeErr := zw.Close()
	fileErr := f.Close()
	switch {
	case walkErr != nil:
		return fmt.Errorf("failed to archive %s: %w", root, walkErr)
	case closeErr != nil:
		return fmt.Errorf("failed to finish archive: %w", closeErr)
	case fileErr != nil:
		return fmt.Errorf("failed to close archive: %w", fileErr)
	}
	return nil
}

func addFile(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}
