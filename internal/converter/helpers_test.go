package converter

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"io"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// gradient returns a width x height image whose pixels all differ.
func gradient(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 13), B: uint8(x + y), A: 255})
		}
	}
	return img
}

func encodeAs(t *testing.T, img image.Image, format imaging.Format) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, format))
	return buf.Bytes()
}

// tiffOrientation returns a big-endian TIFF structure whose first IFD holds a
// single Orientation tag.
func tiffOrientation(orientation uint16) []byte {
	var b bytes.Buffer
	b.WriteString("MM")
	binary.Write(&b, binary.BigEndian, uint16(0x2A))
	binary.Write(&b, binary.BigEndian, uint32(8)) // first IFD
	binary.Write(&b, binary.BigEndian, uint16(1)) // entry count
	binary.Write(&b, binary.BigEndian, uint16(0x0112))
	binary.Write(&b, binary.BigEndian, uint16(3)) // SHORT
	binary.Write(&b, binary.BigEndian, uint32(1))
	binary.Write(&b, binary.BigEndian, orientation)
	binary.Write(&b, binary.BigEndian, uint16(0)) // padding
	binary.Write(&b, binary.BigEndian, uint32(0)) // no next IFD
	return b.Bytes()
}

// tiffBrokenIFD returns a TIFF header whose first IFD lies far outside the data.
func tiffBrokenIFD() []byte {
	var b bytes.Buffer
	b.WriteString("MM")
	binary.Write(&b, binary.BigEndian, uint16(0x2A))
	binary.Write(&b, binary.BigEndian, uint32(0x7FFFFFF0))
	return b.Bytes()
}

// withExif splices an APP1 segment carrying tiff right after the JPEG SOI marker.
func withExif(t *testing.T, jpegData, tiff []byte) []byte {
	t.Helper()
	require.True(t, len(jpegData) > 2 && jpegData[0] == 0xFF && jpegData[1] == 0xD8, "not a jpeg")

	payload := append([]byte("Exif\x00\x00"), tiff...)
	var out bytes.Buffer
	out.Write(jpegData[:2])
	out.Write([]byte{0xFF, 0xE1})
	binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(jpegData[2:])
	return out.Bytes()
}

// orientedJPEG encodes a width x height JPEG tagged with orientation.
func orientedJPEG(t *testing.T, width, height int, orientation uint16) []byte {
	t.Helper()
	return withExif(t, encodeAs(t, gradient(width, height), imaging.JPEG), tiffOrientation(orientation))
}

// memResolver serves sources from memory and counts opens and closes.
type memResolver struct {
	mu      sync.Mutex
	sources map[string][]byte
	opened  int
	closed  int
}

func newMemResolver() *memResolver {
	return &memResolver{sources: make(map[string][]byte)}
}

func (m *memResolver) add(ref string, data []byte) string {
	m.sources[ref] = data
	return ref
}

func (m *memResolver) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.sources[ref]
	if !ok {
		return nil, fmt.Errorf("no source %q", ref)
	}
	m.opened++
	return &trackedReader{Reader: bytes.NewReader(data), m: m}, nil
}

type trackedReader struct {
	io.Reader
	m *memResolver
}

func (r *trackedReader) Close() error {
	r.m.mu.Lock()
	r.m.closed++
	r.m.mu.Unlock()
	return nil
}

// recordingSink keeps every document written to it.
type recordingSink struct {
	writes [][]byte
	names  []string
	err    error
}

func (s *recordingSink) Write(ctx context.Context, name string, data []byte) (Result, error) {
	if s.err != nil {
		return Result{}, s.err
	}
	s.writes = append(s.writes, data)
	s.names = append(s.names, name)
	return Result{FilePath: "/virtual/" + name}, nil
}

// recordingObserver captures observer events.
type recordingObserver struct {
	unreadable []int
	pages      [][2]int
}

func (o *recordingObserver) OrientationUnreadable(index int, ref string, err error) {
	o.unreadable = append(o.unreadable, index)
}

func (o *recordingObserver) PageAdded(index int, ref string, width, height int) {
	o.pages = append(o.pages, [2]int{width, height})
}

func float(v float64) *float64 { return &v }

// pngHeader returns a PNG holding only a signature and an IHDR chunk that
// declares an 8-bit RGBA image of the given size.
func pngHeader(width, height uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], width)
	binary.BigEndian.PutUint32(ihdr[4:], height)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // truecolor with alpha

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}
