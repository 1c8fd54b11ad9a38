package pairing

import "github.com/skip2/go-qrcode"

// RenderQR renders code as a PNG QR code of size pixels square, for the
// (external) extension UI to display during the pairing handshake.
func RenderQR(code string, size int) ([]byte, error) {
	return qrcode.Encode(code, qrcode.Medium, size)
}
