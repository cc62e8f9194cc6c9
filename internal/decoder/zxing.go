package decoder

import (
	"fmt"
	"image"
	"math"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/aztec"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/makiuchi-d/gozxing/multi"
	multiqr "github.com/makiuchi-d/gozxing/multi/qrcode"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/pdf417"
	"gocv.io/x/gocv"

	"github.com/ayusman/codescan/internal/focus"
)

// ZXingDecoder recognizes codes with gozxing.
type ZXingDecoder struct{}

// NewZXingDecoder creates a gozxing-backed decoder.
func NewZXingDecoder() *ZXingDecoder {
	return &ZXingDecoder{}
}

// Decode runs every reader the options ask for over the frame region.
func (d *ZXingDecoder) Decode(frame *gocv.Mat, opts Options) ([]Code, error) {
	if frame == nil || frame.Empty() {
		return nil, nil
	}

	fw, fh := frame.Cols(), frame.Rows()
	roi := pixelRegion(opts.Region, fw, fh)
	if roi.Empty() {
		return nil, nil
	}

	img, err := regionImage(frame, roi)
	if err != nil {
		return nil, err
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("binarize frame: %w", err)
	}

	hints := make(map[gozxing.DecodeHintType]interface{})
	if opts.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	var codes []Code
	seen := make(map[string]bool)
	for _, reader := range readersFor(opts, hints) {
		results, err := reader.DecodeMultiple(bmp, hints)
		if err != nil {
			// Not found, checksum and format errors all mean no code.
			continue
		}
		for _, result := range results {
			sym, ok := fromZXing(result.GetBarcodeFormat())
			if !ok || !opts.Wants(sym) {
				continue
			}
			// The generic reader revisits tiles and can find a code twice.
			key := string(sym) + "\x00" + result.GetText()
			if seen[key] {
				continue
			}
			seen[key] = true
			codes = append(codes, toCode(sym, result, roi, fw, fh))
		}
	}
	return codes, nil
}

// Close is a no-op.
func (d *ZXingDecoder) Close() error {
	return nil
}

// multipleReader finds every code of its formats in one bitmap.
type multipleReader interface {
	DecodeMultiple(image *gozxing.BinaryBitmap, hints map[gozxing.DecodeHintType]interface{}) ([]*gozxing.Result, error)
}

func readersFor(opts Options, hints map[gozxing.DecodeHintType]interface{}) []multipleReader {
	var readers []multipleReader
	if opts.Wants(QR) {
		readers = append(readers, multiqr.NewQRCodeMultiReader())
	}
	if opts.Wants(DataMatrix) {
		readers = append(readers, multi.NewGenericMultipleBarcodeReader(datamatrix.NewDataMatrixReader()))
	}
	if opts.Wants(Aztec) {
		readers = append(readers, multi.NewGenericMultipleBarcodeReader(aztec.NewAztecReader()))
	}
	if opts.Wants(PDF417) {
		readers = append(readers, multi.NewGenericMultipleBarcodeReader(pdf417.NewPDF417Reader()))
	}
	for _, s := range AllSymbologies() {
		if s.Linear() && opts.Wants(s) {
			readers = append(readers, multi.NewGenericMultipleBarcodeReader(oned.NewMultiFormatOneDReader(hints)))
			break
		}
	}
	return readers
}

// pixelRegion converts a frame-normalized region into pixels. The zero
// region is the whole frame; any other region that is empty or out of
// range selects nothing.
func pixelRegion(r focus.Rect, w, h int) image.Rectangle {
	full := image.Rect(0, 0, w, h)
	if r.IsZero() {
		return full
	}
	if !r.Normalized() {
		return image.Rectangle{}
	}
	return image.Rect(
		int(math.Floor(r.X*float64(w))),
		int(math.Floor(r.Y*float64(h))),
		int(math.Ceil((r.X+r.Width)*float64(w))),
		int(math.Ceil((r.Y+r.Height)*float64(h))),
	).Intersect(full)
}

func regionImage(frame *gocv.Mat, roi image.Rectangle) (image.Image, error) {
	if roi == image.Rect(0, 0, frame.Cols(), frame.Rows()) {
		img, err := frame.ToImage()
		if err != nil {
			return nil, fmt.Errorf("convert frame: %w", err)
		}
		return img, nil
	}

	region := frame.Region(roi)
	defer region.Close()

	img, err := region.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert region: %w", err)
	}
	return img, nil
}

func toCode(sym Symbology, result *gozxing.Result, roi image.Rectangle, fw, fh int) Code {
	code := Code{Symbology: sym, Payload: result.GetText()}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range result.GetResultPoints() {
		pt := focus.Point{
			X: (float64(roi.Min.X) + p.GetX()) / float64(fw),
			Y: (float64(roi.Min.Y) + p.GetY()) / float64(fh),
		}
		code.Corners = append(code.Corners, pt)
		minX, minY = math.Min(minX, pt.X), math.Min(minY, pt.Y)
		maxX, maxY = math.Max(maxX, pt.X), math.Max(maxY, pt.Y)
	}
	if len(code.Corners) > 0 {
		code.Bounds = focus.Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
	}
	return code
}

func fromZXing(f gozxing.BarcodeFormat) (Symbology, bool) {
	switch f {
	case gozxing.BarcodeFormat_QR_CODE:
		return QR, true
	case gozxing.BarcodeFormat_DATA_MATRIX:
		return DataMatrix, true
	case gozxing.BarcodeFormat_AZTEC:
		return Aztec, true
	case gozxing.BarcodeFormat_PDF_417:
		return PDF417, true
	case gozxing.BarcodeFormat_CODE_128:
		return Code128, true
	case gozxing.BarcodeFormat_CODE_39:
		return Code39, true
	case gozxing.BarcodeFormat_CODE_93:
		return Code93, true
	case gozxing.BarcodeFormat_EAN_8:
		return EAN8, true
	case gozxing.BarcodeFormat_EAN_13:
		return EAN13, true
	case gozxing.BarcodeFormat_UPC_A:
		return UPCA, true
	case gozxing.BarcodeFormat_UPC_E:
		return UPCE, true
	case gozxing.BarcodeFormat_ITF:
		return ITF, true
	case gozxing.BarcodeFormat_CODABAR:
		return Codabar, true
	default:
		return "", false
	}
}
