package parser

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Mode selects the parsing path.
type Mode int

const (
	ModeAuto Mode = iota
	ModePlain
	ModeStructured
)

func (m Mode) String() string {
	switch m {
	case ModePlain:
		return "plain"
	case ModeStructured:
		return "structured"
	default:
		return "auto"
	}
}

var (
	magicPDF  = []byte("%PDF-")
	magicZip  = []byte("PK\x03\x04")
	magicGzip = []byte{0x1f, 0x8b}
)

// structuredFormats are the formats routed to the structured extractor.
var structuredFormats = map[string]bool{
	"pdf": true, "docx": true, "pptx": true, "xlsx": true, "html": true,
}

// DetectFormat names the content format from the file extension and the
// first bytes. Magic bytes win over the extension; anything unrecognized is
// "text".
func DetectFormat(path string, head []byte) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch {
	case bytes.HasPrefix(head, magicPDF):
		return "pdf"
	case bytes.HasPrefix(head, magicGzip):
		return "gzip"
	case bytes.HasPrefix(head, magicZip):
		switch ext {
		case "docx", "pptx", "xlsx":
			return ext
		}
		return "zip"
	case looksLikeHTML(head):
		return "html"
	}
	switch ext {
	case "pdf", "docx", "pptx", "xlsx":
		// Extension claims a binary format the bytes do not confirm.
		return ext
	case "htm", "html":
		return "html"
	case "md", "csv", "json":
		return ext
	}
	return "text"
}

// DetectMode picks structured for document formats and plain otherwise.
func DetectMode(path string, head []byte) Mode {
	if structuredFormats[DetectFormat(path, head)] {
		return ModeStructured
	}
	return ModePlain
}

func looksLikeHTML(head []byte) bool {
	h := bytes.ToLower(bytes.TrimSpace(head))
	h = bytes.TrimPrefix(h, []byte("\xef\xbb\xbf"))
	return bytes.HasPrefix(h, []byte("<!doctype html")) || bytes.HasPrefix(h, []byte("<html"))
}

// DetectDocumentType labels log content by its dominant vocabulary.
func DetectDocumentType(lines []string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(strings.ToLower(l))
		b.WriteByte('\n')
	}
	content := b.String()
	switch {
	case strings.Contains(content, "kernel:") || strings.Contains(content, "dmesg"):
		return "kernel_log"
	case strings.Contains(content, "selinux") || strings.Contains(content, "avc:"):
		return "selinux_log"
	case strings.Contains(content, "systemd") || strings.Contains(content, "journalctl"):
		return "systemd_log"
	case strings.Contains(content, "java") || strings.Contains(content, "exception"):
		return "application_log"
	case strings.Contains(content, "audit"):
		return "audit_log"
	case strings.Contains(content, "auth"):
		return "auth_log"
	}
	return "general_log"
}
