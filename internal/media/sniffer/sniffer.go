package sniffer

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"schoolhouse/api/internal/models"
)

type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatWEBP Format = "webp"
	FormatAVIF Format = "avif"
	FormatSVG  Format = "svg"
	FormatMP4  Format = "mp4"
	FormatWEBM Format = "webm"
	FormatMP3  Format = "mp3"
	FormatWAV  Format = "wav"
	FormatOGG  Format = "ogg"
	FormatPDF  Format = "pdf"
)

var ErrUnknownType = errors.New("unknown media type")

type Result struct {
	Format Format
	Kind   models.MediaType
	MIME   string
	Ext    string
}

var results = map[Format]Result{
	FormatJPEG: {FormatJPEG, models.MediaTypeImage, "image/jpeg", ".jpg"},
	FormatPNG:  {FormatPNG, models.MediaTypeImage, "image/png", ".png"},
	FormatGIF:  {FormatGIF, models.MediaTypeImage, "image/gif", ".gif"},
	FormatWEBP: {FormatWEBP, models.MediaTypeImage, "image/webp", ".webp"},
	FormatAVIF: {FormatAVIF, models.MediaTypeImage, "image/avif", ".avif"},
	FormatSVG:  {FormatSVG, models.MediaTypeImage, "image/svg+xml", ".svg"},
	FormatMP4:  {FormatMP4, models.MediaTypeVideo, "video/mp4", ".mp4"},
	FormatWEBM: {FormatWEBM, models.MediaTypeVideo, "video/webm", ".webm"},
	FormatMP3:  {FormatMP3, models.MediaTypeAudio, "audio/mpeg", ".mp3"},
	FormatWAV:  {FormatWAV, models.MediaTypeAudio, "audio/wav", ".wav"},
	FormatOGG:  {FormatOGG, models.MediaTypeAudio, "audio/ogg", ".ogg"},
	FormatPDF:  {FormatPDF, models.MediaTypeDocument, "application/pdf", ".pdf"},
}

func Detect(r io.Reader) (Result, []byte, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Result{}, nil, err
	}
	head = head[:n]

	result, err := DetectHead(head)
	return result, head, err
}

func DetectHead(head []byte) (Result, error) {
	if len(head) == 0 {
		return Result{}, ErrUnknownType
	}

	for _, check := range []struct {
		format Format
		match  func([]byte) bool
	}{
		{FormatJPEG, isJPEG},
		{FormatPNG, isPNG},
		{FormatGIF, isGIF},
		{FormatWEBP, isWEBP},
		{FormatWAV, isWAV},
		{FormatAVIF, isAVIF},
		{FormatMP4, isMP4},
		{FormatWEBM, isWEBM},
		{FormatOGG, isOGG},
		{FormatMP3, isMP3},
		{FormatPDF, isPDF},
		{FormatSVG, isSVG},
	} {
		if check.match(head) {
			return results[check.format], nil
		}
	}

	return Result{}, ErrUnknownType
}

func isJPEG(head []byte) bool {
	return len(head) > 3 &&
		head[0] == 0xff &&
		head[1] == 0xd8 &&
		head[2] == 0xff
}

func isPNG(head []byte) bool {
	pngMagic := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	return len(head) >= len(pngMagic) && bytes.Equal(head[:len(pngMagic)], pngMagic)
}

func isGIF(head []byte) bool {
	return len(head) >= 6 && (bytes.Equal(head[:6], []byte("GIF87a")) || bytes.Equal(head[:6], []byte("GIF89a")))
}

func isRIFF(head []byte, form string) bool {
	return len(head) >= 12 &&
		bytes.Equal(head[:4], []byte("RIFF")) &&
		bytes.Equal(head[8:12], []byte(form))
}

func isWEBP(head []byte) bool {
	return isRIFF(head, "WEBP")
}

func isWAV(head []byte) bool {
	return isRIFF(head, "WAVE")
}

func isFtyp(head []byte) bool {
	return len(head) >= 12 && string(head[4:8]) == "ftyp"
}

func isAVIF(head []byte) bool {
	return isFtyp(head) && bytes.Contains(head[8:], []byte("avif"))
}

// isMP4 covers the ISO base media family that is not AVIF (mp4, m4v, mov).
func isMP4(head []byte) bool {
	return isFtyp(head) && !isAVIF(head)
}

func isWEBM(head []byte) bool {
	return len(head) >= 4 && bytes.Equal(head[:4], []byte{0x1a, 0x45, 0xdf, 0xa3})
}

func isOGG(head []byte) bool {
	return len(head) >= 4 && bytes.Equal(head[:4], []byte("OggS"))
}

func isMP3(head []byte) bool {
	if len(head) >= 3 && bytes.Equal(head[:3], []byte("ID3")) {
		return true
	}
	return len(head) >= 2 && head[0] == 0xff && head[1]&0xe0 == 0xe0
}

func isPDF(head []byte) bool {
	return len(head) >= 5 && bytes.Equal(head[:5], []byte("%PDF-"))
}

func isSVG(head []byte) bool {
	trimmed := strings.TrimSpace(string(head))
	if strings.HasPrefix(trimmed, "<svg") {
		return true
	}
	return strings.HasPrefix(trimmed, "<?xml") && strings.Contains(strings.ToLower(trimmed), "<svg")
}

func MimeTypeFromHTTP(header http.Header) string {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		return ""
	}
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		return strings.TrimSpace(contentType[:idx])
	}
	return strings.TrimSpace(contentType)
}
