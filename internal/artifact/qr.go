// Package artifact renders and stores the files a session produces: the
// QR image students scan and the roll-call sheet lecturers export.
package artifact

import (
	qrcode "github.com/skip2/go-qrcode"
)

// QREncoder encodes tokens as QR PNG images.
type QREncoder struct {
	Size int
}

// NewQREncoder creates an encoder; size is the PNG edge in pixels.
func NewQREncoder(size int) *QREncoder {
	if size <= 0 {
		size = 512
	}
	return &QREncoder{Size: size}
}

// Encode returns a PNG of the token as a QR code.
func (e *QREncoder) Encode(token string) ([]byte, error) {
	return qrcode.Encode(token, qrcode.Medium, e.Size)
}
