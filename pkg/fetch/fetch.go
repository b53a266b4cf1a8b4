// Package fetch downloads a ref of a remote repository as a tarball,
// verifies it against an optional checksum file, extracts it, and resolves
// the single top-level directory the archive produces.
package fetch

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const (
	// ArchiveName is the fixed name the bundle is downloaded to inside the
	// destination directory. Concurrent fetches into the same directory
	// would race on this file; callers hold the workdir lock.
	ArchiveName = "bundle.tar.gz"

	// ChecksumSuffix names the sibling checksum file checked next to the
	// archive (ArchiveName + ChecksumSuffix).
	ChecksumSuffix = ".sha256"

	// DefaultBaseURL is the GitHub tarball endpoint. The archive URL is
	// <base>/<owner>/<name>/tar.gz/<ref>.
	DefaultBaseURL = "https://codeload.github.com"

	downloadTimeout = 5 * time.Minute
	filePerm        = 0o644
	dirPerm         = 0o755
)

// Request describes one bundle fetch.
type Request struct {
	// Repo is the repository identifier, "owner/name".
	Repo string
	// Ref is a tag name or commit SHA.
	Ref string
	// AuthToken, when set, is sent as a bearer Authorization header.
	// Required for private repositories.
	AuthToken string
	// DestDir receives the archive and the extracted tree. Created if
	// missing.
	DestDir string
	// ChecksumFile optionally points at a checksum file to verify against.
	// When empty, DestDir/bundle.tar.gz.sha256 is used if it exists.
	ChecksumFile string
}

// Result is the outcome of a successful fetch.
type Result struct {
	ArchivePath string
	RootDir     string
	// ChecksumVerified is false when no checksum file was available;
	// verification is best-effort, and callers should surface a warning.
	ChecksumVerified bool
	// Integrity is the "sha256:<hex>" digest of the downloaded archive.
	Integrity string
}

// Client fetches bundles from an archive host.
type Client struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
}

// NewClient creates a client for the given archive host base URL.
// An empty baseURL selects the GitHub endpoint.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:    baseURL,
		UserAgent:  "stackboot",
		HTTPClient: &http.Client{Timeout: downloadTimeout},
	}
}

// Fetch downloads, verifies, and extracts the requested bundle. Every step
// either succeeds or the whole fetch fails; there is no partial result.
func (c *Client) Fetch(ctx context.Context, req Request) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(req.DestDir, dirPerm); err != nil {
		return nil, fmt.Errorf("creating destination %s: %w", req.DestDir, err)
	}

	archivePath := filepath.Join(req.DestDir, ArchiveName)
	url := c.archiveURL(req)
	if err := c.download(ctx, url, req.AuthToken, archivePath); err != nil {
		return nil, err
	}

	digest, err := hashFile(archivePath)
	if err != nil {
		return nil, fmt.Errorf("hashing %s: %w", archivePath, err)
	}

	verified, err := verifyChecksum(req, archivePath, digest)
	if err != nil {
		return nil, err
	}

	root, err := resolveRoot(archivePath)
	if err != nil {
		return nil, err
	}

	if err := extract(archivePath, req.DestDir); err != nil {
		return nil, err
	}

	rootDir := filepath.Join(req.DestDir, root)
	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, &ExtractionError{Archive: archivePath, Reason: fmt.Sprintf("root directory %s missing after extraction", root)}
	}
	if !info.IsDir() {
		return nil, &ExtractionError{Archive: archivePath, Reason: fmt.Sprintf("top-level entry %s is not a directory", root)}
	}

	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", rootDir, err)
	}

	return &Result{
		ArchivePath:      archivePath,
		RootDir:          abs,
		ChecksumVerified: verified,
		Integrity:        "sha256:" + digest,
	}, nil
}

func validate(req Request) error {
	parts := strings.Split(req.Repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid repository %q: must be owner/name", req.Repo)
	}
	if req.Ref == "" {
		return fmt.Errorf("ref must not be empty")
	}
	if req.DestDir == "" {
		return fmt.Errorf("destination directory must not be empty")
	}
	return nil
}

func (c *Client) archiveURL(req Request) string {
	return fmt.Sprintf("%s/%s/tar.gz/%s", strings.TrimSuffix(c.BaseURL, "/"), req.Repo, req.Ref)
}

// download performs a single GET with no retries; the client timeout is
// the only deadline. The archive file is only created on a success status,
// and removed again if the body copy fails.
func (c *Client) download(ctx context.Context, url, token, path string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &FetchError{URL: url, Err: err}
	}
	httpReq.Header.Set("User-Agent", c.UserAgent)
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &FetchError{URL: url, Status: resp.StatusCode}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return &FetchError{URL: url, Err: err}
	}
	return f.Close()
}

// verifyChecksum compares the archive digest against the checksum file if
// one is present. A missing checksum file is not an error: verification is
// best-effort, and the caller records it as unverified.
func verifyChecksum(req Request, archivePath, digest string) (bool, error) {
	checksumPath := req.ChecksumFile
	if checksumPath == "" {
		checksumPath = archivePath + ChecksumSuffix
	}

	data, err := os.ReadFile(checksumPath)
	if err != nil {
		if os.IsNotExist(err) && req.ChecksumFile == "" {
			return false, nil
		}
		return false, fmt.Errorf("reading checksum file %s: %w", checksumPath, err)
	}

	want, err := ExtractChecksum(data, filepath.Base(archivePath))
	if err != nil {
		return false, fmt.Errorf("parsing checksum file %s: %w", checksumPath, err)
	}

	if want != digest {
		return false, &IntegrityError{Path: archivePath, Want: want, Got: digest}
	}
	return true, nil
}

// resolveRoot scans the archive listing and returns the first path segment
// of the first entry. Every entry must live under that same segment: the
// single-top-level-directory layout is enforced rather than assumed, so a
// multi-root archive fails loudly instead of mis-resolving.
func resolveRoot(archivePath string) (string, error) {
	var root string
	err := walkArchive(archivePath, func(hdr *tar.Header, _ *tar.Reader) error {
		name, ok := cleanEntryName(hdr.Name)
		if !ok {
			return nil
		}
		if strings.HasPrefix(name, "..") {
			return &ExtractionError{Archive: archivePath, Reason: fmt.Sprintf("entry %q escapes the destination", hdr.Name)}
		}
		seg, _, _ := strings.Cut(name, "/")
		if root == "" {
			root = seg
		} else if seg != root {
			return &ExtractionError{Archive: archivePath, Reason: fmt.Sprintf("multiple top-level entries (%q and %q)", root, seg)}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if root == "" {
		return "", &ExtractionError{Archive: archivePath, Reason: "archive has no entries"}
	}
	return root, nil
}

func extract(archivePath, destDir string) error {
	cleanDest := filepath.Clean(destDir)
	realDest, err := filepath.EvalSymlinks(cleanDest)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", cleanDest, err)
	}

	return walkArchive(archivePath, func(hdr *tar.Header, tr *tar.Reader) error {
		name, ok := cleanEntryName(hdr.Name)
		if !ok {
			return nil
		}

		target := filepath.Join(cleanDest, filepath.FromSlash(name))
		if !strings.HasPrefix(target, cleanDest+string(os.PathSeparator)) {
			return &ExtractionError{Archive: archivePath, Reason: fmt.Sprintf("entry %q escapes the destination", hdr.Name)}
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			return os.MkdirAll(target, entryPerm(hdr, dirPerm))
		case tar.TypeReg:
			if err := ensureParent(realDest, target); err != nil {
				return &ExtractionError{Archive: archivePath, Reason: err.Error()}
			}
			return writeEntry(tr, target, entryPerm(hdr, filePerm))
		case tar.TypeSymlink:
			if filepath.IsAbs(hdr.Linkname) {
				return &ExtractionError{Archive: archivePath, Reason: fmt.Sprintf("symlink %q has absolute target", hdr.Name)}
			}
			// A relative target is resolved against the entry's own
			// directory; it must stay inside the destination (tar-slip).
			link := path.Clean(path.Join(path.Dir(name), filepath.ToSlash(hdr.Linkname)))
			if link == ".." || strings.HasPrefix(link, "../") {
				return &ExtractionError{Archive: archivePath, Reason: fmt.Sprintf("symlink %q escapes the destination", hdr.Name)}
			}
			if err := ensureParent(realDest, target); err != nil {
				return &ExtractionError{Archive: archivePath, Reason: err.Error()}
			}
			os.Remove(target)
			return os.Symlink(hdr.Linkname, target)
		default:
			// Hard links, devices, and the like do not appear in host
			// tarballs; skip anything unexpected.
			return nil
		}
	})
}

// ensureParent creates the parent directory of target and verifies that,
// with any symlinks resolved, it still lies inside root. This stops writes
// through a symlinked path component even when each entry name looked safe.
func ensureParent(root, target string) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return err
	}
	if real != root && !strings.HasPrefix(real, root+string(os.PathSeparator)) {
		return fmt.Errorf("parent of %q resolves outside the destination", target)
	}
	return nil
}

// walkArchive opens the gzip tarball and calls fn for each entry.
func walkArchive(archivePath string, fn func(*tar.Header, *tar.Reader) error) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", archivePath, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return &ExtractionError{Archive: archivePath, Reason: fmt.Sprintf("not a gzip archive: %v", err)}
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &ExtractionError{Archive: archivePath, Reason: fmt.Sprintf("reading archive: %v", err)}
		}
		if hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}
		if err := fn(hdr, tr); err != nil {
			return err
		}
	}
}

// cleanEntryName normalizes a tar entry name to a slash-separated relative
// path. Returns ok=false for entries that carry no path (".", "").
func cleanEntryName(name string) (string, bool) {
	cleaned := path.Clean(strings.TrimPrefix(name, "./"))
	if cleaned == "." || cleaned == "" {
		return "", false
	}
	return cleaned, true
}

func writeEntry(tr *tar.Reader, target string, perm os.FileMode) error {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, tr); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func entryPerm(hdr *tar.Header, fallback os.FileMode) os.FileMode {
	if perm := hdr.FileInfo().Mode().Perm(); perm != 0 {
		return perm
	}
	return fallback
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
