package avatar

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough for http.DetectContentType to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func TestEncodeDecode_RoundTrip(t *testing.T) {
	cases := []struct {
		name        string
		data        []byte
		contentType string
	}{
		{"declared jpeg", []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}, "image/jpeg"},
		{"sniffed png", pngHeader, ""},
		{"binary with zero bytes", append([]byte{0, 0, 0}, pngHeader...), "image/webp"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Encode(tc.data, tc.contentType)
			require.NotNil(t, p)

			data, contentType, err := Decode(p)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(tc.data, data), "bytes changed in round trip")
			assert.Equal(t, p.ContentType, contentType)
			if tc.contentType != "" {
				assert.Equal(t, tc.contentType, contentType)
			}
		})
	}
}

func TestEncode_SniffsPNG(t *testing.T) {
	p := Encode(pngHeader, "application/octet-stream")
	require.NotNil(t, p)
	assert.Equal(t, "image/png", p.ContentType)
}

func TestEncode_NoImage(t *testing.T) {
	assert.Nil(t, Encode(nil, "image/png"))
	assert.Nil(t, Encode([]byte{}, ""))
}

func TestDecode_Errors(t *testing.T) {
	_, _, err := Decode(nil)
	assert.True(t, errors.Is(err, ErrEmpty))

	_, _, err = Decode(&Payload{ContentType: "image/png", Data: "%%%"})
	assert.True(t, errors.Is(err, ErrBadEncoding))
}

func TestDataURI_RoundTrip(t *testing.T) {
	p := Encode(pngHeader, "image/png")
	uri := p.DataURI()
	assert.Contains(t, uri, "data:image/png;base64,")

	parsed, err := ParseDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, *p, *parsed)

	data, contentType, err := Decode(parsed)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
	assert.Equal(t, "image/png", contentType)
}

func TestDataURI_Nil(t *testing.T) {
	var p *Payload
	assert.Equal(t, "", p.DataURI())
}

func TestParseDataURI_Malformed(t *testing.T) {
	for _, in := range []string{"", "image/png;base64,AAA", "data:image/png,AAA", "data:image/png;base64,", "data:image/png;base64"} {
		_, err := ParseDataURI(in)
		assert.ErrorIs(t, err, ErrBadDataURI, in)
	}
}

func TestValidate(t *testing.T) {
	contentType, err := Validate(pngHeader, "")
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)

	_, err = Validate([]byte("just some text"), "")
	assert.ErrorIs(t, err, ErrNotImage)

	_, err = Validate(nil, "image/png")
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Validate(make([]byte, MaxBytes+1), "image/png")
	assert.ErrorIs(t, err, ErrTooLarge)
}
