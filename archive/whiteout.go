package archive

import "strings"

// Whiteout sentinel filenames, per the OCI image-layer convention (§6):
//
//	<dir>/.wh.<name>      delete sibling file/dir <dir>/<name>
//	<path>/.wh..wh..opq   remove the entire directory <path>
const (
	whiteoutPrefix = ".wh."
	opaqueLeaf     = ".wh..wh..opq"
)

func splitPath(p string) (dir, base string) {
	if idx := strings.LastIndexByte(p, '/'); idx >= 0 {
		return p[:idx], p[idx+1:]
	}
	return "", p
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// whiteoutName returns the sibling whiteout entry name for the deletion
// of p: dirname(p) + "/.wh." + basename(p).
func whiteoutName(p string) string {
	dir, base := splitPath(p)
	return joinPath(dir, whiteoutPrefix+base)
}

// opaqueWhiteoutName returns the opaque whiteout entry name that removes
// the entire directory dirPath: dirPath + "/.wh..wh..opq".
func opaqueWhiteoutName(dirPath string) string {
	return joinPath(dirPath, opaqueLeaf)
}

// isWhiteout reports whether name's leaf component begins with ".wh.",
// i.e. name is some form of whiteout entry (opaque or sibling).
func isWhiteout(name string) bool {
	_, base := splitPath(name)
	return strings.HasPrefix(base, whiteoutPrefix)
}

// isOpaqueWhiteout reports whether name's leaf component is exactly
// ".wh..wh..opq".
func isOpaqueWhiteout(name string) bool {
	_, base := splitPath(name)
	return base == opaqueLeaf
}

// whiteoutTarget returns the path a sibling whiteout entry deletes:
// dirname(name) + "/" + strings.TrimPrefix(basename(name), ".wh."). The
// caller must have already excluded opaque whiteouts, whose target is
// instead the entry's own parent directory.
func whiteoutTarget(name string) string {
	dir, base := splitPath(name)
	return joinPath(dir, strings.TrimPrefix(base, whiteoutPrefix))
}

// opaqueWhiteoutTarget returns the directory an opaque whiteout entry
// removes: the parent of the entry's own path.
func opaqueWhiteoutTarget(name string) string {
	dir, _ := splitPath(name)
	return dir
}
