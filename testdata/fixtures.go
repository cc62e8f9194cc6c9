// Package testdata renders synthetic camera frames for tests.
package testdata

import (
	"fmt"
	"image"
	"image/color"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"gocv.io/x/gocv"
)

// Default frame dimensions.
const (
	FrameWidth  = 640
	FrameHeight = 480
)

// BlankFrame returns a white BGR frame.
func BlankFrame(width, height int) *gocv.Mat {
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), height, width, gocv.MatTypeCV8UC3)
	return &mat
}

// QRImage renders content as a QR code centered on a white canvas.
// The code occupies side pixels.
func QRImage(content string, width, height, side int) (*image.Gray, error) {
	img := whiteCanvas(width, height)
	if err := drawQR(img, content, width/2, height/2, side); err != nil {
		return nil, err
	}
	return img, nil
}

// QRFrame returns a BGR frame containing a QR code for content.
func QRFrame(content string) (*gocv.Mat, error) {
	img, err := QRImage(content, FrameWidth, FrameHeight, FrameHeight/2)
	if err != nil {
		return nil, err
	}
	return grayToFrame(img)
}

// QRPairFrame returns a BGR frame with a QR code for left in the left half
// and one for right in the right half.
func QRPairFrame(left, right string) (*gocv.Mat, error) {
	img := whiteCanvas(FrameWidth, FrameHeight)
	side := FrameWidth / 3
	if err := drawQR(img, left, FrameWidth/4, FrameHeight/2, side); err != nil {
		return nil, err
	}
	if err := drawQR(img, right, FrameWidth*3/4, FrameHeight/2, side); err != nil {
		return nil, err
	}
	return grayToFrame(img)
}

func whiteCanvas(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

// drawQR draws a QR code for content centered on (cx, cy).
func drawQR(img *image.Gray, content string, cx, cy, side int) error {
	matrix, err := qrcode.NewQRCodeWriter().Encode(content, gozxing.BarcodeFormat_QR_CODE, side, side, nil)
	if err != nil {
		return fmt.Errorf("encode %q: %w", content, err)
	}

	ox := cx - matrix.GetWidth()/2
	oy := cy - matrix.GetHeight()/2
	for y := 0; y < matrix.GetHeight(); y++ {
		for x := 0; x < matrix.GetWidth(); x++ {
			if matrix.Get(x, y) {
				img.SetGray(ox+x, oy+y, color.Gray{Y: 0})
			}
		}
	}
	return nil
}

func grayToFrame(img *image.Gray) (*gocv.Mat, error) {
	gray, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	defer gray.Close()

	mat := gocv.NewMat()
	gocv.CvtColor(gray, &mat, gocv.ColorGrayToBGR)
	return &mat, nil
}

// QRSequence returns one QR frame per payload.
func QRSequence(payloads ...string) ([]*gocv.Mat, error) {
	var frames []*gocv.Mat
	for _, p := range payloads {
		frame, err := QRFrame(p)
		if err != nil {
			// Clean up already rendered frames
			Close(frames)
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// Close releases every frame.
func Close(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}
