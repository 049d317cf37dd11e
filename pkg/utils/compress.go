package utils

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Compress writes path (a file or directory) as a .tar.gz at outputPath.
func Compress(path, outputPath string) error {
	tarFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("could not create archive %s: %w", outputPath, err)
	}
	defer tarFile.Close()

	gzw := gzip.NewWriter(tarFile)
	defer gzw.Close()

	tw := tar.NewWriter(gzw)
	defer tw.Close()

	return filepath.Walk(path, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}

		header, err := tar.FileInfoHeader(info, path)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(path)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		data, err := os.Open(path)
		if err != nil {
			return err
		}
		defer data.Close()

		_, err = io.Copy(tw, data)
		return err
	})
}

// Decompress extracts a .tar.gz archive under baseDir.
func Decompress(tarPath, baseDir string) error {
	tarFile, err := os.Open(tarPath)
	if err != nil {
		return fmt.Errorf("could not open archive %s: %w", tarPath, err)
	}
	defer tarFile.Close()

	gzr, err := gzip.NewReader(tarFile)
	if err != nil {
		return fmt.Errorf("could not read archive %s: %w", tarPath, err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}

		target := filepath.Join(baseDir, header.Name)
		switch header.Typeflag {
		case tar.TypeDir:
			if _, err := os.Stat(target); err != nil {
				if err := os.MkdirAll(target, fs.FileMode(header.Mode)); err != nil {
					return err
				}
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0755)
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			f.Close()
		}
	}
}

// TarCopy copies src to dst through a tar archive to preserve the folder
// structure.
func TarCopy(src, dst, tempDir string) error {
	f, err := os.CreateTemp(tempDir, "tarcopy-*.tar.gz")
	if err != nil {
		return err
	}
	f.Close()
	defer os.Remove(f.Name())

	if err := Compress(src, f.Name()); err != nil {
		return err
	}
	return Decompress(f.Name(), dst)
}
