package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// writePDF writes a minimal well-formed PDF with the given number of blank pages.
func writePDF(t *testing.T, dir string, pages int) string {
	t.Helper()

	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))
	for i := 0; i < pages; i++ {
		obj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)

	path := filepath.Join(dir, fmt.Sprintf("doc-%d.pdf", pages))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func writePostScript(t *testing.T, dir string, pages int) string {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("%!PS-Adobe-3.0\n%%Pages: " + fmt.Sprint(pages) + "\n")
	for i := 1; i <= pages; i++ {
		fmt.Fprintf(&buf, "%%%%Page: %d %d\nshowpage\n", i, i)
	}
	buf.WriteString("%%EOF\n")

	path := filepath.Join(dir, fmt.Sprintf("doc-%d.ps", pages))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}
