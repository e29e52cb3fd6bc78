package slidepdf_test

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"lectern/internal/services"
	"lectern/internal/slidepdf"
)

func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writePNGWithAlpha(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 0x20, G: 0x40, B: 0x60, A: 0xFF})
		}
	}
	img.Set(0, 0, color.NRGBA{R: 0x20, G: 0x40, B: 0x60, A: 0x00})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestComposeLaysOutObjectsDeterministically(t *testing.T) {
	dir := t.TempDir()
	jpegPath := filepath.Join(dir, "1.jpg")
	pngPath := filepath.Join(dir, "2.png")
	writeJPEG(t, jpegPath, 800, 600)
	writePNGWithAlpha(t, pngPath, 400, 300)

	outPath := filepath.Join(dir, "slides.pdf")
	if err := slidepdf.Compose([]string{jpegPath, pngPath}, outPath); err != nil {
		t.Fatalf("Compose returned error: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-1.7\n")) {
		t.Fatal("missing PDF header")
	}

	wantFragments := []string{
		// First image: page 5, image 6, content 8, no soft mask.
		"5 0 obj",
		"/MediaBox [0 0 800 600]",
		"/Filter /DCTDecode",
		"8 0 obj",
		// Second image: page 9, image 10, soft mask 11, content 12.
		"9 0 obj",
		"/MediaBox [0 0 400 300]",
		"/Filter /FlateDecode",
		"/SMask 11 0 R",
		"11 0 obj",
		"/ColorSpace /DeviceGray",
		// Catalog and page tree.
		"1 0 obj",
		"/Type /Catalog /Pages 2 0 R",
		"/Kids [5 0 R 9 0 R] /Count 2",
		"trailer",
		"/Size 13 /Root 1 0 R",
		"%%EOF",
	}
	for _, fragment := range wantFragments {
		if !bytes.Contains(data, []byte(fragment)) {
			t.Fatalf("output missing %q", fragment)
		}
	}

	// The opaque JPEG page leaves its soft mask slot unallocated.
	if bytes.Contains(data, []byte("7 0 obj")) {
		t.Fatal("unexpected soft mask object for opaque image")
	}
	if !bytes.Contains(data, []byte("q\n800 0 0 600 0 0 cm\n/Im1 Do\nQ")) {
		t.Fatal("content stream does not scale the image to the page")
	}
}

// inflateStream extracts and decompresses the stream body of one object.
func inflateStream(t *testing.T, pdf []byte, obj int) []byte {
	t.Helper()
	start := bytes.Index(pdf, []byte(fmt.Sprintf("%d 0 obj\n", obj)))
	if start < 0 {
		t.Fatalf("object %d not found", obj)
	}
	body := pdf[start:]
	streamStart := bytes.Index(body, []byte("stream\n"))
	if streamStart < 0 {
		t.Fatalf("object %d has no stream", obj)
	}
	body = body[streamStart+len("stream\n"):]
	streamEnd := bytes.Index(body, []byte("\nendstream"))
	if streamEnd < 0 {
		t.Fatalf("object %d stream is unterminated", obj)
	}
	zr, err := zlib.NewReader(bytes.NewReader(body[:streamEnd]))
	if err != nil {
		t.Fatalf("object %d stream is not zlib data: %v", obj, err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("inflate object %d: %v", obj, err)
	}
	return out
}

func TestComposeEmbedsStoredPNGSamples(t *testing.T) {
	dir := t.TempDir()
	pngPath := filepath.Join(dir, "pixel.png")
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 128})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pngPath, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	outPath := filepath.Join(dir, "out.pdf")
	if err := slidepdf.Compose([]string{pngPath}, outPath); err != nil {
		t.Fatalf("Compose returned error: %v", err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}

	// The image stream carries the PNG's stored samples, not values
	// darkened by the alpha that the soft mask already encodes.
	if rgb := inflateStream(t, data, 6); !bytes.Equal(rgb, []byte{200, 100, 50}) {
		t.Fatalf("embedded RGB = %v, want [200 100 50]", rgb)
	}
	if mask := inflateStream(t, data, 7); !bytes.Equal(mask, []byte{128}) {
		t.Fatalf("embedded alpha = %v, want [128]", mask)
	}
}

func TestComposeRejectsEmptySet(t *testing.T) {
	err := slidepdf.Compose(nil, filepath.Join(t.TempDir(), "out.pdf"))
	if !errors.Is(err, services.ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}

func TestComposeRejectsUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "not-an-image.gif")
	if err := os.WriteFile(bad, []byte("GIF89a..."), 0o644); err != nil {
		t.Fatal(err)
	}
	err := slidepdf.Compose([]string{bad}, filepath.Join(dir, "out.pdf"))
	if !errors.Is(err, services.ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}
