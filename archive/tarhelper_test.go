package archive

import (
	"archive/tar"
	"bytes"
	"io"
	"testing"
)

// testTarWriter builds raw tar streams for cases CreateArchive itself
// would never produce (an absolute entry name), so ApplyArchive's
// rejection of them can be exercised directly.
type testTarWriter struct {
	tw *tar.Writer
}

func newTestTarWriter(w io.Writer) *testTarWriter {
	return &testTarWriter{tw: tar.NewWriter(w)}
}

func (t *testTarWriter) writeReg(name, contents string) {
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Size:     int64(len(contents)),
		Mode:     neutralFileMode,
		ModTime:  neutralModTime,
		Format:   tar.FormatPAX,
	}
	_ = t.tw.WriteHeader(hdr)
	_, _ = t.tw.Write([]byte(contents))
}

func (t *testTarWriter) close() {
	_ = t.tw.Close()
}

// tarEntryNames returns the entry names present in a tar stream, in
// order, for asserting on exactly what CreateArchive wrote.
func tarEntryNames(t *testing.T, raw []byte) []string {
	t.Helper()
	tr := tar.NewReader(bytes.NewReader(raw))
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("reading tar stream: %v", err)
		}
		names = append(names, hdr.Name)
	}
	return names
}
