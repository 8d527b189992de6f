package artifact

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ledongthuc/pdf"

	"github.com/Sriram-PR/conf-crawler/pkg/utils"
)

var pdfMagic = []byte("%PDF-")

// VerifyPDF checks that path holds a readable PDF with at least one page
func VerifyPDF(path string) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", utils.ErrFilesystem, path, err)
	}
	defer f.Close()

	head := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head, pdfMagic) {
		return fmt.Errorf("%w: missing PDF header", utils.ErrArtifactInvalid)
	}
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", utils.ErrFilesystem, path, err)
	}

	// the pdf reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", utils.ErrArtifactInvalid, r)
		}
	}()
	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return fmt.Errorf("%w: %w", utils.ErrArtifactInvalid, err)
	}
	if r.NumPage() < 1 {
		return fmt.Errorf("%w: no pages", utils.ErrArtifactInvalid)
	}
	return nil
}
