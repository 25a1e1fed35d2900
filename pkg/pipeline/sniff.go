package pipeline

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ledongthuc/pdf"

	"github.com/vprint/vprint/pkg/job"
)

var (
	pdfMagic = []byte("%PDF-")
	psMagic  = []byte("%!PS")
	dscPage  = []byte("%%Page:")
)

// Sniff reports the format of the document at path from its leading bytes.
func Sniff(path string) (job.DocumentFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, 1024)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	return sniffBytes(head[:n])
}

func sniffBytes(head []byte) (job.DocumentFormat, error) {
	// Some producers emit a byte order mark or whitespace first.
	head = bytes.TrimLeft(head, "\xef\xbb\xbf \t\r\n")
	switch {
	case bytes.HasPrefix(head, pdfMagic):
		return job.FormatPDF, nil
	case bytes.HasPrefix(head, psMagic):
		return job.FormatPostScript, nil
	case bytes.Contains(head, pdfMagic):
		return job.FormatPDF, nil
	default:
		return "", fmt.Errorf("%w: unrecognised document header", job.ErrUnsupportedFormat)
	}
}

// CountPages returns the page count of a document in the given format.
func CountPages(path string, format job.DocumentFormat) (int, error) {
	switch format {
	case job.FormatPDF:
		return countPDFPages(path)
	case job.FormatPostScript:
		return countPostScriptPages(path)
	default:
		return 0, fmt.Errorf("%w: %s", job.ErrUnsupportedFormat, format)
	}
}

func countPDFPages(path string) (pages int, err error) {
	// The PDF reader panics on some malformed object graphs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrUnreadableDocument, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}
	defer f.Close()

	return r.NumPage(), nil
}

// countPostScriptPages counts DSC %%Page: comments. A conforming document
// without them is treated as a single page.
func countPostScriptPages(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	pages := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if bytes.HasPrefix(sc.Bytes(), dscPage) {
			pages++
		}
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}
	if pages == 0 {
		pages = 1
	}
	return pages, nil
}
