package files

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/iantal/miniapp/internal/domain"
)

// Resolve maps rel, a forward-slash path relative to root, to a location
// strictly inside root. It never clamps: anything that would escape root,
// including through a symlink, is an *domain.ErrInvalidPath.
func Resolve(root, rel string) (string, error) {
	if strings.TrimSpace(rel) == "" {
		return "", &domain.ErrInvalidPath{Path: rel, Reason: "path is empty"}
	}

	if strings.ContainsRune(rel, 0) {
		return "", &domain.ErrInvalidPath{Path: rel, Reason: "path contains a NUL byte"}
	}

	p := strings.ReplaceAll(rel, "\\", "/")
	if strings.HasPrefix(p, "/") || filepath.VolumeName(rel) != "" || hasDriveLetter(p) {
		return "", &domain.ErrInvalidPath{Path: rel, Reason: "absolute paths are not allowed"}
	}

	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", &domain.ErrInvalidPath{Path: rel, Reason: "parent directory segments are not allowed"}
		}
	}

	if strings.HasSuffix(p, "/") {
		return "", &domain.ErrInvalidPath{Path: rel, Reason: "path names a directory"}
	}

	clean := path.Clean(p)
	if clean == "." {
		return "", &domain.ErrInvalidPath{Path: rel, Reason: "path resolves to the project root"}
	}
	if strings.SplitN(clean, "/", 2)[0] == MetaFile {
		return "", &domain.ErrInvalidPath{Path: rel, Reason: "path is reserved"}
	}

	full := filepath.Join(root, filepath.FromSlash(clean))
	if !within(root, full) {
		return "", &domain.ErrInvalidPath{Path: rel, Reason: "escapes project root"}
	}

	ok, err := linkedWithin(root, full)
	if err != nil {
		return "", &domain.ErrInvalidPath{Path: rel, Reason: err.Error()}
	}
	if !ok {
		return "", &domain.ErrInvalidPath{Path: rel, Reason: "symlink escapes project root"}
	}

	return full, nil
}

// within reports whether p is a strict descendant of root
func within(root, p string) bool {
	r, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	if r == "." || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(r)
}

// linkedWithin evaluates symlinks on the deepest existing ancestor of full
// and checks the result against the evaluated root
func linkedWithin(root, full string) (bool, error) {
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		if os.IsNotExist(err) {
			// nothing on disk yet, the lexical check is all there is
			return true, nil
		}
		return false, err
	}

	existing := full
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return true, nil
		}
		existing = parent
	}

	if existing == root {
		return true, nil
	}

	real, err := filepath.EvalSymlinks(existing)
	if err != nil {
		// dangling link
		return false, nil
	}
	return within(realRoot, real), nil
}

func hasDriveLetter(p string) bool {
	return len(p) >= 2 && p[1] == ':' && ((p[0] >= 'a' && p[0] <= 'z') || (p[0] >= 'A' && p[0] <= 'Z'))
}
