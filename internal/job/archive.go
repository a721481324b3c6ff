package job

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// archiveAndRemove tars+zstd-compresses a completed job's directory into
// "<dir>.tar.zst" alongside the jobs root, then removes the original
// directory, so a routine clean doesn't silently discard job history.
func archiveAndRemove(dir string) error {
	archivePath := dir + ".tar.zst"
	f, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return err
	}
	tw := tar.NewWriter(zw)

	entries, err := os.ReadDir(dir)
	if err != nil {
		tw.Close()
		zw.Close()
		f.Close()
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := addFileToTar(tw, path, e.Name()); err != nil {
			tw.Close()
			zw.Close()
			f.Close()
			return err
		}
	}
	if err := tw.Close(); err != nil {
		zw.Close()
		f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

func addFileToTar(tw *tar.Writer, path, name string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	hdr := &tar.Header{Name: name, Mode: 0o644, Size: fi.Size(), ModTime: fi.ModTime()}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()
	_, err = io.Copy(tw, in)
	return err
}
