package snapshot

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Bundle packs the given filesystem paths into a single gzipped tar blob.
// Directories are recursed. Entry names are the path basenames (with the
// directory's own name as prefix for nested entries), so extraction on the
// receiving node reproduces the copied selection, not the sender's absolute
// directory layout.
func Bundle(paths []string) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if info.IsDir() {
			err = bundleDir(tw, p, filepath.Base(p))
		} else {
			err = bundleFile(tw, p, filepath.Base(p), info)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("tar close: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

func bundleDir(tw *tar.Writer, dir, prefix string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		name := prefix
		if rel != "." {
			name = filepath.ToSlash(filepath.Join(prefix, rel))
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			hdr := &tar.Header{
				Name:     name + "/",
				Typeflag: tar.TypeDir,
				Mode:     int64(info.Mode().Perm()),
				ModTime:  info.ModTime(),
			}
			return tw.WriteHeader(hdr)
		}
		if !info.Mode().IsRegular() {
			return nil // skip sockets, devices, symlinks
		}
		return bundleFile(tw, p, name, info)
	})
}

func bundleFile(tw *tar.Writer, path, name string, info fs.FileInfo) error {
	hdr := &tar.Header{
		Name:    name,
		Size:    info.Size(),
		Mode:    int64(info.Mode().Perm()),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("tar header %s: %w", name, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("tar write %s: %w", name, err)
	}
	return nil
}

// Extract unpacks a Bundle blob into dir and returns the absolute top-level
// paths it created, in archive order. Entry names are sanitised so a
// malicious archive cannot escape dir.
func Extract(blob []byte, dir string) ([]string, error) {
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("gzip open: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var top []string
	seenTop := make(map[string]bool)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tar read: %w", err)
		}

		name := filepath.FromSlash(strings.TrimSuffix(hdr.Name, "/"))
		if name == "" || name == "." || filepath.IsAbs(name) ||
			strings.Contains(name, "..") {
			return nil, fmt.Errorf("unsafe archive entry %q", hdr.Name)
		}
		dest := filepath.Join(dir, name)

		first := name
		if i := strings.IndexRune(name, filepath.Separator); i >= 0 {
			first = name[:i]
		}
		if !seenTop[first] {
			seenTop[first] = true
			top = append(top, filepath.Join(dir, first))
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, fs.FileMode(hdr.Mode)|0o700); err != nil {
				return nil, fmt.Errorf("mkdir %s: %w", dest, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
				return nil, fmt.Errorf("mkdir %s: %w", filepath.Dir(dest), err)
			}
			if err := writeFile(dest, tr, fs.FileMode(hdr.Mode)); err != nil {
				return nil, err
			}
		default:
			// Bundle never writes other types; ignore them on the way in.
		}
	}
	return top, nil
}

func writeFile(dest string, r io.Reader, mode fs.FileMode) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode|0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return f.Close()
}
