// Package qrcode renders text into a PNG QR code, used by providers that
// deliver an Attachment tagged domain.AttachmentKindQRCode (currently
// Telegram) instead of raw file bytes.
package qrcode

import (
	"fmt"

	"github.com/skip2/go-qrcode"
)

// Encode renders content as a PNG QR code of size x size pixels.
func Encode(content string, size int) ([]byte, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}
	return png, nil
}
