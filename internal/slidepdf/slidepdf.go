// Package slidepdf composes a set of slide images into a single PDF, one
// full-bleed page per image. JPEG data is embedded as-is under DCTDecode;
// PNG data is re-encoded as zlib-compressed RGB with an optional grayscale
// soft mask carrying the alpha channel.
package slidepdf

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"

	"lectern/internal/fileutil"
	"lectern/internal/services"
)

// Object numbering is fixed: the catalog is object 1 and the page tree is
// object 2. Image i (1-indexed) owns objects 4i+1 (page), 4i+2 (image),
// 4i+3 (soft mask, PNG with alpha only), and 4i+4 (content stream).
const (
	catalogObj  = 1
	pageTreeObj = 2
)

func pageObj(i int) int    { return 4*i + 1 }
func imageObj(i int) int   { return 4*i + 2 }
func smaskObj(i int) int   { return 4*i + 3 }
func contentObj(i int) int { return 4*i + 4 }

// Compose writes the PDF for the images at imagePaths, in order, to outPath.
// The output file appears atomically.
func Compose(imagePaths []string, outPath string) error {
	if len(imagePaths) == 0 {
		return services.Wrap(services.ErrFormat, "compose pdf", "no images", nil)
	}

	doc := newDocument()
	for i, path := range imagePaths {
		if err := doc.addImagePage(i+1, path); err != nil {
			return err
		}
	}
	doc.finish(len(imagePaths))

	if err := fileutil.WriteFileAtomic(outPath, doc.bytes(), 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "compose pdf", "write output", err)
	}
	return nil
}

type document struct {
	buf     bytes.Buffer
	offsets map[int]int
	maxObj  int
}

func newDocument() *document {
	d := &document{offsets: make(map[int]int)}
	d.buf.WriteString("%PDF-1.7\n")
	// Binary marker comment so transfer tools treat the file as binary.
	d.buf.Write([]byte{'%', 0xE2, 0xE3, 0xCF, 0xD3, '\n'})
	return d
}

func (d *document) bytes() []byte { return d.buf.Bytes() }

func (d *document) beginObject(num int) {
	d.offsets[num] = d.buf.Len()
	if num > d.maxObj {
		d.maxObj = num
	}
	fmt.Fprintf(&d.buf, "%d 0 obj\n", num)
}

func (d *document) endObject() {
	d.buf.WriteString("endobj\n")
}

func (d *document) writeStream(num int, dict string, data []byte) {
	d.beginObject(num)
	fmt.Fprintf(&d.buf, "<< %s /Length %d >>\nstream\n", dict, len(data))
	d.buf.Write(data)
	d.buf.WriteString("\nendstream\n")
	d.endObject()
}

// addImagePage appends the four objects of one image. index is 1-based.
func (d *document) addImagePage(index int, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return services.Wrap(services.ErrTransient, "compose pdf", "read image", err)
	}

	kind := sniffImage(data)
	var (
		width, height int
		filter        string
		encoded       []byte
		mask          []byte
	)
	switch kind {
	case "jpeg":
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return services.Wrap(services.ErrFormat, "compose pdf", "decode jpeg", err)
		}
		width, height = cfg.Width, cfg.Height
		filter = "/DCTDecode"
		encoded = data
	case "png":
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return services.Wrap(services.ErrFormat, "compose pdf", "decode png", err)
		}
		rgb, alpha, hasAlpha := splitChannels(img)
		width = img.Bounds().Dx()
		height = img.Bounds().Dy()
		filter = "/FlateDecode"
		encoded, err = deflate(rgb)
		if err != nil {
			return services.Wrap(services.ErrFormat, "compose pdf", "compress image", err)
		}
		if hasAlpha {
			mask, err = deflate(alpha)
			if err != nil {
				return services.Wrap(services.ErrFormat, "compose pdf", "compress mask", err)
			}
		}
	default:
		return services.Wrap(services.ErrFormat, "compose pdf",
			fmt.Sprintf("unsupported image format in %s", path), nil)
	}

	imageName := fmt.Sprintf("Im%d", index)

	d.beginObject(pageObj(index))
	fmt.Fprintf(&d.buf,
		"<< /Type /Page /Parent %d 0 R /MediaBox [0 0 %d %d] /Contents %d 0 R /Resources << /XObject << /%s %d 0 R >> >> >>\n",
		pageTreeObj, width, height, contentObj(index), imageName, imageObj(index))
	d.endObject()

	imageDict := fmt.Sprintf(
		"/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter %s",
		width, height, filter)
	if mask != nil {
		imageDict += fmt.Sprintf(" /SMask %d 0 R", smaskObj(index))
	}
	d.writeStream(imageObj(index), imageDict, encoded)

	if mask != nil {
		maskDict := fmt.Sprintf(
			"/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray /BitsPerComponent 8 /Filter %s",
			width, height, filter)
		d.writeStream(smaskObj(index), maskDict, mask)
	}

	// Scale the unit-square image to fill the page.
	content := fmt.Sprintf("q\n%d 0 0 %d 0 0 cm\n/%s Do\nQ", width, height, imageName)
	d.writeStream(contentObj(index), "", []byte(content))
	return nil
}

// finish writes the catalog, page tree, cross-reference table, and trailer.
func (d *document) finish(pageCount int) {
	d.beginObject(catalogObj)
	fmt.Fprintf(&d.buf, "<< /Type /Catalog /Pages %d 0 R >>\n", pageTreeObj)
	d.endObject()

	d.beginObject(pageTreeObj)
	d.buf.WriteString("<< /Type /Pages /Kids [")
	for i := 1; i <= pageCount; i++ {
		if i > 1 {
			d.buf.WriteByte(' ')
		}
		fmt.Fprintf(&d.buf, "%d 0 R", pageObj(i))
	}
	fmt.Fprintf(&d.buf, "] /Count %d >>\n", pageCount)
	d.endObject()

	xrefOffset := d.buf.Len()
	fmt.Fprintf(&d.buf, "xref\n0 %d\n", d.maxObj+1)
	d.buf.WriteString("0000000000 65535 f \n")
	for num := 1; num <= d.maxObj; num++ {
		if offset, ok := d.offsets[num]; ok {
			fmt.Fprintf(&d.buf, "%010d 00000 n \n", offset)
		} else {
			// Unallocated slot (soft mask of an opaque image).
			d.buf.WriteString("0000000000 00000 f \n")
		}
	}
	fmt.Fprintf(&d.buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		d.maxObj+1, catalogObj, xrefOffset)
}

func sniffImage(data []byte) string {
	switch {
	case len(data) > 2 && data[0] == 0xFF && data[1] == 0xD8:
		return "jpeg"
	case len(data) > 8 && bytes.Equal(data[:8], []byte("\x89PNG\r\n\x1a\n")):
		return "png"
	default:
		return ""
	}
}

// splitChannels flattens the image into 8-bit RGB samples plus the alpha
// channel. hasAlpha reports whether any pixel is not fully opaque. The RGB
// samples are the stored (non-premultiplied) values; the soft mask applies
// alpha at render time.
func splitChannels(img image.Image) (rgb, alpha []byte, hasAlpha bool) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	rgb = make([]byte, 0, w*h*3)
	alpha = make([]byte, 0, w*h)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			px := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			rgb = append(rgb, px.R, px.G, px.B)
			alpha = append(alpha, px.A)
			if px.A != 0xFF {
				hasAlpha = true
			}
		}
	}
	return rgb, alpha, hasAlpha
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
