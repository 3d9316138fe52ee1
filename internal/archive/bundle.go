package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
)

// Extension returns the bundle file extension for a compression name.
func Extension(compression string) (string, error) {
	switch strings.ToLower(compression) {
	case "gzip", "":
		return ".tar.gz", nil
	case "snappy":
		return ".tar.sz", nil
	default:
		return "", fmt.Errorf("unsupported archive compression %q", compression)
	}
}

// BundleName returns the file name of bundle n.
func BundleName(prefix string, n int, compression string) (string, error) {
	ext, err := Extension(compression)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-p%d%s", prefix, n, ext), nil
}

// Write writes the partitions as one compressed tarball at dst. Each file
// is stored as <partition dir>/<file name>. The bundle appears atomically.
func Write(ctx context.Context, dst string, parts []PartitionDir, compression string) (int64, error) {
	if _, err := Extension(compression); err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, err
	}
	tmp := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+"."+uuid.NewString()[:8]+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}

	err = writeTar(ctx, f, parts, compression)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, dst)
	}
	if err != nil {
		os.Remove(tmp)
		return 0, err
	}
	st, err := os.Stat(dst)
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

func writeTar(ctx context.Context, w io.Writer, parts []PartitionDir, compression string) error {
	var zw io.WriteCloser
	if strings.EqualFold(compression, "snappy") {
		zw = snappy.NewBufferedWriter(w)
	} else {
		zw = gzip.NewWriter(w)
	}
	tw := tar.NewWriter(zw)

	for _, p := range parts {
		if err := tw.WriteHeader(&tar.Header{
			Typeflag: tar.TypeDir,
			Name:     p.Name + "/",
			Mode:     0755,
		}); err != nil {
			return err
		}
		for _, file := range p.Files {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := addFile(tw, file, path.Join(p.Name, filepath.Base(file))); err != nil {
				return err
			}
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return zw.Close()
}

func addFile(tw *tar.Writer, src, name string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(st, "")
	if err != nil {
		return err
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

// Entries lists the regular file names stored in a bundle.
func Entries(bundlePath string) ([]string, error) {
	f, err := os.Open(bundlePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader
	if strings.HasSuffix(bundlePath, ".tar.sz") {
		r = snappy.NewReader(f)
	} else {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}

	var names []string
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return names, nil
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag == tar.TypeReg {
			names = append(names, hdr.Name)
		}
	}
}
