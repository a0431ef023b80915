package files

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	"sdr-go/internal/sdr"
)

const (
	defaultContentType   = "application/octet-stream"
	jsonContentType      = "application/json"
	directUploadJSONType = "application/vnd.sdr-direct-upload+json"
)

// Inspector is the local filesystem implementation of sdr.FileInspector.
// MD5 sums computed by Collect are kept until UploadRequests uses them, so a
// file is read once per deposit.
type Inspector struct {
	mu      sync.Mutex
	md5sums map[string]md5Sum
}

// md5Sum is a digest of a file as it was when read.
type md5Sum struct {
	size int64
	sum  []byte
}

// NewInspector creates a new Inspector.
func NewInspector() *Inspector {
	return &Inspector{}
}

// Resolve checks that every path names a regular file under baseDir.
func (i *Inspector) Resolve(baseDir string, paths []string) ([]sdr.LocalFile, error) {
	seen := make(map[string]bool, len(paths))
	files := make([]sdr.LocalFile, 0, len(paths))

	for _, rel := range paths {
		if seen[rel] {
			return nil, &sdr.PreconditionError{Path: rel, Reason: fmt.Sprintf("file supplied more than once: %s", rel)}
		}
		seen[rel] = true

		abs := absolutePath(baseDir, rel)
		info, err := os.Stat(abs)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, sdr.NewFileNotFound(abs)
			}
			return nil, fmt.Errorf("stat %s: %w", abs, err)
		}
		if !info.Mode().IsRegular() {
			return nil, &sdr.PreconditionError{Path: abs, Reason: fmt.Sprintf("not a regular file: %s", abs)}
		}

		files = append(files, sdr.LocalFile{
			RelativePath: rel,
			AbsolutePath: abs,
			ByteSize:     info.Size(),
		})
	}
	return files, nil
}

// Collect fills in mime type and digests for every file. Values already
// present in overrides are kept as is.
func (i *Inspector) Collect(baseDir string, paths []string, overrides map[string]sdr.FileMetadata) (map[string]sdr.FileMetadata, error) {
	result := make(map[string]sdr.FileMetadata, len(paths))
	for _, rel := range paths {
		md := overrides[rel]
		abs := absolutePath(baseDir, rel)

		if md.MD5 == "" || md.SHA1 == "" {
			sums, err := digests(abs)
			if err != nil {
				return nil, err
			}
			i.remember(abs, md5Sum{size: sums.size, sum: sums.md5})
			if md.MD5 == "" {
				md.MD5 = hex.EncodeToString(sums.md5)
			}
			if md.SHA1 == "" {
				md.SHA1 = hex.EncodeToString(sums.sha1)
			}
		}

		if md.MimeType == "" {
			mt, err := detectMimeType(abs)
			if err != nil {
				return nil, err
			}
			md.MimeType = mt
		}

		result[rel] = md
	}
	return result, nil
}

// UploadRequests builds the direct upload request of each file.
// The checksum always comes from the content on disk, never from supplied
// metadata: either the sum Collect computed or a fresh read.
func (i *Inspector) UploadRequests(files []sdr.LocalFile, metadata map[string]sdr.FileMetadata) (map[string]sdr.UploadRequest, error) {
	requests := make(map[string]sdr.UploadRequest, len(files))
	for _, f := range files {
		checksum, err := i.uploadChecksum(f)
		if err != nil {
			return nil, err
		}
		requests[f.RelativePath] = sdr.UploadRequest{
			Filename:    f.RelativePath,
			ByteSize:    f.ByteSize,
			Checksum:    checksum,
			ContentType: NormalizeContentType(metadata[f.RelativePath].MimeType),
		}
	}
	return requests, nil
}

// NormalizeContentType maps a detected or supplied MIME type to the content
// type sent with a direct upload. Parameters are dropped and blank becomes
// application/octet-stream. application/json is rewritten because the
// upload endpoint would otherwise try to parse the file as a request body.
func NormalizeContentType(contentType string) string {
	ct := strings.TrimSpace(contentType)
	if ct == "" {
		return defaultContentType
	}
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}
	if ct == "" {
		return defaultContentType
	}
	if strings.EqualFold(ct, jsonContentType) {
		return directUploadJSONType
	}
	return ct
}

func absolutePath(baseDir, rel string) string {
	if filepath.IsAbs(rel) || baseDir == "" {
		return filepath.Clean(rel)
	}
	return filepath.Join(baseDir, rel)
}

func detectMimeType(path string) (string, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detecting mime type of %s: %w", path, err)
	}
	essence, _, err := mime.ParseMediaType(mt.String())
	if err != nil {
		return mt.String(), nil
	}
	return essence, nil
}

func (i *Inspector) remember(abs string, sum md5Sum) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.md5sums == nil {
		i.md5sums = make(map[string]md5Sum)
	}
	i.md5sums[abs] = sum
}

// uploadChecksum returns the base64 MD5 of a file. A sum left by Collect is
// used once, and only if the file size still matches.
func (i *Inspector) uploadChecksum(f sdr.LocalFile) (string, error) {
	i.mu.Lock()
	cached, ok := i.md5sums[f.AbsolutePath]
	delete(i.md5sums, f.AbsolutePath)
	i.mu.Unlock()

	if ok && cached.size == f.ByteSize {
		return base64.StdEncoding.EncodeToString(cached.sum), nil
	}
	sums, err := digests(f.AbsolutePath)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sums.md5), nil
}

type fileDigests struct {
	size int64
	md5  []byte
	sha1 []byte
}

func digests(path string) (fileDigests, error) {
	f, err := os.Open(path)
	if err != nil {
		return fileDigests{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	m := md5.New()
	s := sha1.New()
	n, err := io.Copy(io.MultiWriter(m, s), f)
	if err != nil {
		return fileDigests{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return fileDigests{size: n, md5: m.Sum(nil), sha1: s.Sum(nil)}, nil
}

// Compile-time check that Inspector implements sdr.FileInspector interface
var _ sdr.FileInspector = (*Inspector)(nil)
