package upload

import (
	"bytes"
	"path/filepath"
	"strings"
)

// MIME types recognized by the detector.
const (
	TypePDF  = "application/pdf"
	TypePNG  = "image/png"
	TypeJPEG = "image/jpeg"
	TypeGIF  = "image/gif"
	TypeWebP = "image/webp"
	TypeMP3  = "audio/mpeg"
	TypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	TypeDOC  = "application/msword"

	// Executables are recognized so they never reach the extension fallback.
	TypeWindowsExecutable = "application/x-msdownload"
	TypeELFExecutable     = "application/x-executable"
)

// docxProbeLen is how much of a ZIP archive is searched for OOXML markers.
const docxProbeLen = 1000

var (
	sigPDF  = []byte("%PDF")
	sigPNG  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	sigJPEG = []byte{0xFF, 0xD8, 0xFF}
	sigGIF7 = []byte("GIF87a")
	sigGIF9 = []byte("GIF89a")
	sigRIFF = []byte("RIFF")
	sigWEBP = []byte("WEBP")
	sigMP3  = []byte{0xFF, 0xFB, 0x90}
	sigID3  = []byte("ID3")
	sigZIP  = []byte{0x50, 0x4B, 0x03, 0x04}
	sigOLE2 = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	sigMZ   = []byte("MZ")
	sigELF  = []byte{0x7F, 'E', 'L', 'F'}
)

var docxMarkers = []string{
	"word/",
	"docProps/",
	"wordprocessingml",
	"application/vnd.openxmlformats",
}

// signature is one entry of the ordered detection table.
type signature struct {
	mime  string
	match func(data []byte) bool
}

// signatures is evaluated top to bottom; the first match wins.
var signatures = []signature{
	{TypePDF, func(b []byte) bool { return bytes.HasPrefix(b, sigPDF) }},
	{TypePNG, func(b []byte) bool { return bytes.HasPrefix(b, sigPNG) }},
	{TypeJPEG, func(b []byte) bool { return bytes.HasPrefix(b, sigJPEG) }},
	{TypeGIF, func(b []byte) bool { return bytes.HasPrefix(b, sigGIF7) || bytes.HasPrefix(b, sigGIF9) }},
	{TypeWebP, isWebP},
	{TypeMP3, func(b []byte) bool { return bytes.HasPrefix(b, sigMP3) || bytes.HasPrefix(b, sigID3) }},
	{TypeDOCX, isDOCX},
	{TypeDOC, func(b []byte) bool { return bytes.HasPrefix(b, sigOLE2) }},
	{TypeWindowsExecutable, func(b []byte) bool { return bytes.HasPrefix(b, sigMZ) }},
	{TypeELFExecutable, func(b []byte) bool { return bytes.HasPrefix(b, sigELF) }},
}

var extensionTypes = map[string]string{
	".docx": TypeDOCX,
	".doc":  TypeDOC,
	".pdf":  TypePDF,
	".mp3":  TypeMP3,
	".png":  TypePNG,
	".jpg":  TypeJPEG,
	".jpeg": TypeJPEG,
}

func isWebP(b []byte) bool {
	return len(b) >= 12 && bytes.HasPrefix(b, sigRIFF) && bytes.Equal(b[8:12], sigWEBP)
}

// isDOCX reports whether b is a ZIP archive that looks like a Word document.
// OOXML packages list their parts near the start of the archive, so only
// the first docxProbeLen bytes are inspected.
func isDOCX(b []byte) bool {
	if !bytes.HasPrefix(b, sigZIP) {
		return false
	}
	probe := b
	if len(probe) > docxProbeLen {
		probe = probe[:docxProbeLen]
	}
	text := string(probe)
	for _, m := range docxMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// Sniff returns the MIME type identified by the leading bytes of data,
// or "" when no signature matches.
func Sniff(data []byte) string {
	for _, sig := range signatures {
		if sig.match(data) {
			return sig.mime
		}
	}
	return ""
}

// TypeFromExtension maps a filename extension to a MIME type.
// It returns "" for extensions outside the fallback table.
func TypeFromExtension(filename string) string {
	return extensionTypes[strings.ToLower(filepath.Ext(filename))]
}

// Detect determines the media type of an upload. Content signatures take
// priority; the filename is consulted only when sniffing is inconclusive.
func Detect(data []byte, filename string) (string, error) {
	if mime := Sniff(data); mime != "" {
		return mime, nil
	}
	if mime := TypeFromExtension(filename); mime != "" {
		return mime, nil
	}
	return "", ErrUndeterminableType
}
