package sniffer

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolhouse/api/internal/models"
)

func TestDetectHead(t *testing.T) {
	tests := []struct {
		name   string
		head   []byte
		format Format
		kind   models.MediaType
	}{
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0, 0x00}, FormatJPEG, models.MediaTypeImage},
		{"png", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0}, FormatPNG, models.MediaTypeImage},
		{"gif", []byte("GIF89a...."), FormatGIF, models.MediaTypeImage},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), FormatWEBP, models.MediaTypeImage},
		{"avif", []byte("\x00\x00\x00\x1cftypavif\x00\x00\x00\x00"), FormatAVIF, models.MediaTypeImage},
		{"svg", []byte("  <svg xmlns=\"http://www.w3.org/2000/svg\"></svg>"), FormatSVG, models.MediaTypeImage},
		{"xml svg", []byte("<?xml version=\"1.0\"?><svg></svg>"), FormatSVG, models.MediaTypeImage},
		{"mp4", []byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00"), FormatMP4, models.MediaTypeVideo},
		{"webm", []byte{0x1a, 0x45, 0xdf, 0xa3, 0x9f}, FormatWEBM, models.MediaTypeVideo},
		{"mp3 id3", []byte("ID3\x04\x00\x00"), FormatMP3, models.MediaTypeAudio},
		{"wav", []byte("RIFF\x24\x08\x00\x00WAVEfmt "), FormatWAV, models.MediaTypeAudio},
		{"ogg", []byte("OggS\x00\x02"), FormatOGG, models.MediaTypeAudio},
		{"pdf", []byte("%PDF-1.7\n"), FormatPDF, models.MediaTypeDocument},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := DetectHead(tc.head)
			require.NoError(t, err)
			assert.Equal(t, tc.format, res.Format)
			assert.Equal(t, tc.kind, res.Kind)
			assert.NotEmpty(t, res.MIME)
			assert.NotEmpty(t, res.Ext)
		})
	}
}

func TestDetectHeadUnknown(t *testing.T) {
	for _, head := range [][]byte{nil, []byte("hello world"), []byte("<?xml version=\"1.0\"?><note/>")} {
		_, err := DetectHead(head)
		assert.ErrorIs(t, err, ErrUnknownType)
	}
}

func TestDetectReturnsHead(t *testing.T) {
	payload := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("a"), 1024)...)
	res, head, err := Detect(bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, res.Format)
	assert.Len(t, head, 512)

	res, head, err = Detect(bytes.NewReader([]byte("GIF87a")))
	require.NoError(t, err)
	assert.Equal(t, FormatGIF, res.Format)
	assert.Len(t, head, 6)
}

func TestMimeTypeFromHTTP(t *testing.T) {
	h := http.Header{}
	assert.Empty(t, MimeTypeFromHTTP(h))
	h.Set("Content-Type", "image/png; charset=binary")
	assert.Equal(t, "image/png", MimeTypeFromHTTP(h))
}
