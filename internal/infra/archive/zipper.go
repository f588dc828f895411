package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Zipper bundles staged keyframes and their manifest into one archive.
type Zipper struct{}

func NewZipper() *Zipper {
	return &Zipper{}
}

// CreateZip writes filePaths into outputPath. Entries are named by base name;
// colliding names get a numeric suffix. The archive appears at outputPath only
// once it is complete.
func (z *Zipper) CreateZip(ctx context.Context, filePaths []string, outputPath string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".zip-*")
	if err != nil {
		return fmt.Errorf("create zip file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	zw := zip.NewWriter(tmp)
	used := make(map[string]int, len(filePaths))
	for _, fp := range filePaths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := addFile(zw, fp, entryName(used, filepath.Base(fp))); err != nil {
			return fmt.Errorf("add %s to zip: %w", fp, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish zip: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return os.Rename(tmp.Name(), outputPath)
}

func entryName(used map[string]int, name string) string {
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "_" + strconv.Itoa(n) + ext
}

func addFile(zw *zip.Writer, path, name string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = method(name)

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, file)
	return err
}

// JPEGs are already compressed; deflating them only costs CPU.
func method(name string) uint16 {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpeg", ".jpg", ".png":
		return zip.Store
	default:
		return zip.Deflate
	}
}
