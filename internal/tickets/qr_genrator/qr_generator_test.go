package qr

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var payload = TicketPayload{RaffleID: "r1", OrderCode: "SRT-ABCD2345", TicketCode: "0042"}

func TestEncryptDecrypt(t *testing.T) {
	g := NewQRGenerator("secret")

	token, err := g.Encrypt(payload)
	require.NoError(t, err)
	assert.NotContains(t, token, "0042")

	got, err := g.Decrypt(token)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	token, err := NewQRGenerator("secret").Encrypt(payload)
	require.NoError(t, err)

	_, err = NewQRGenerator("other").Decrypt(token)
	assert.Error(t, err)

	_, err = NewQRGenerator("secret").Decrypt("c2hvcnQ=")
	assert.Error(t, err)
}

func TestGenerateEncryptedQRIsPNG(t *testing.T) {
	img, err := NewQRGenerator("secret").GenerateEncryptedQR(payload, 128)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Equal(t, 128, decoded.Bounds().Dx())
}
