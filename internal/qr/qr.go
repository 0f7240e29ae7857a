// Package qr renders the share URL as a QR code, either as a PNG data URI
// for the home page or as half-block characters for the terminal banner.
package qr

import (
	"encoding/base64"
	"fmt"
	"io"

	"github.com/mdp/qrterminal/v3"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	pngPrefix = "data:image/png;base64,"
	pngSize   = 256
)

// Half-block glyphs, two QR rows per terminal line.
const (
	blackWhite = "\u2584"
	blackBlack = " "
	whiteBlack = "\u2580"
	whiteWhite = "\u2588"
)

// DataURI encodes url as a 256px PNG QR code with medium error correction.
func DataURI(url string) (string, error) {
	png, err := qrcode.Encode(url, qrcode.Medium, pngSize)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return pngPrefix + base64.StdEncoding.EncodeToString(png), nil
}

// Terminal writes url as a compact QR code made of half blocks.
func Terminal(w io.Writer, url string) {
	qrterminal.GenerateWithConfig(url, qrterminal.Config{
		Level:          qrterminal.M,
		Writer:         w,
		HalfBlocks:     true,
		BlackChar:      blackBlack,
		WhiteBlackChar: whiteBlack,
		WhiteChar:      whiteWhite,
		BlackWhiteChar: blackWhite,
		QuietZone:      1,
	})
}
