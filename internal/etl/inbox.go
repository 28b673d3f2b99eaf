package etl

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	claimDirName = ".processing"
	partSuffix   = ".part"
	csvExt       = ".csv"
)

// FileInfo describes a CSV file waiting in the watched directory.
type FileInfo struct {
	Name string `json:"filename"`
	Size int64  `json:"size"`
}

// Inbox is the watched directory. Files dropped into it are unclaimed; a
// file is claimed by renaming it into the .processing subdirectory, which
// gives it exactly one owner.
type Inbox struct {
	dir      string
	claimDir string
	now      func() time.Time
}

// NewInbox creates the directory and its claim subdirectory if needed.
func NewInbox(dir string) (*Inbox, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	in := &Inbox{dir: abs, claimDir: filepath.Join(abs, claimDirName), now: time.Now}
	if err := os.MkdirAll(in.claimDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return in, nil
}

// Dir returns the absolute path of the watched directory.
func (in *Inbox) Dir() string { return in.dir }

// ClaimDir returns the absolute path of the claim subdirectory.
func (in *Inbox) ClaimDir() string { return in.claimDir }

// IsCSV reports whether name has a .csv extension, ignoring case.
func IsCSV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), csvExt)
}

// Pending lists unclaimed CSV files sorted by name.
func (in *Inbox) Pending() ([]FileInfo, error) {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return nil, fmt.Errorf("list data dir: %w", err)
	}
	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !IsCSV(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed since listing
		}
		files = append(files, FileInfo{Name: e.Name(), Size: info.Size()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Claim moves an unclaimed file into the claim directory and returns its new
// absolute path. It fails with fs.ErrNotExist when another claimer won.
func (in *Inbox) Claim(name string) (string, error) {
	src := filepath.Join(in.dir, filepath.Base(name))
	dst := in.claimPath(filepath.Base(name))
	if err := os.Rename(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// claimPath returns a free path in the claim directory for name.
func (in *Inbox) claimPath(name string) string {
	return in.freePath(in.claimDir, name)
}

// freePath returns a path in dir for name that no file occupies. Rename
// replaces existing files, so a taken name gets a unique prefix.
func (in *Inbox) freePath(dir, name string) string {
	dst := filepath.Join(dir, name)
	if _, err := os.Lstat(dst); errors.Is(err, fs.ErrNotExist) {
		return dst
	}
	return filepath.Join(dir, strconv.FormatInt(in.now().UnixNano(), 10)+"_"+name)
}

// Release moves a claimed file back into the watched directory so a later
// scan picks it up again. A file dropped in under the same name meanwhile is
// kept.
func (in *Inbox) Release(path string) error {
	if err := os.Rename(path, in.freePath(in.dir, filepath.Base(path))); err != nil {
		return fmt.Errorf("release %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Stale returns claimed files not modified within ttl and touches them, so
// the caller owns them for another ttl.
func (in *Inbox) Stale(ttl time.Duration) ([]string, error) {
	entries, err := os.ReadDir(in.claimDir)
	if err != nil {
		return nil, fmt.Errorf("list claim dir: %w", err)
	}
	now := in.now()
	var stale []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !IsCSV(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) < ttl {
			continue
		}
		path := filepath.Join(in.claimDir, e.Name())
		if err := os.Chtimes(path, now, now); err != nil {
			continue
		}
		stale = append(stale, path)
	}
	sort.Strings(stale)
	return stale, nil
}

// Store writes r into the claim directory under name and returns the claimed
// path. Content is written to a .part file first so scans never see a
// partial upload. Writes above maxBytes fail with ErrTooLarge; maxBytes <= 0
// means no limit.
func (in *Inbox) Store(name string, r io.Reader, maxBytes int64) (string, error) {
	dst := in.claimPath(filepath.Base(name))
	tmp := dst + partSuffix

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && maxBytes > 0 && n > maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(tmp)
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("finalize upload: %w", err)
	}
	return dst, nil
}
