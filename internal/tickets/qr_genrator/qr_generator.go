package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"

	"github.com/skip2/go-qrcode"
)

// TicketPayload is what a ticket QR code carries, encrypted.
type TicketPayload struct {
	RaffleID   string `json:"raffle_id"`
	OrderCode  string `json:"order_code"`
	TicketCode string `json:"ticket_code"`
}

type QRGenerator struct {
	secret []byte
}

func NewQRGenerator(secret string) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &QRGenerator{secret: hashed[:]}
}

// GenerateEncryptedQR returns a PNG QR code of the encrypted payload.
func (q *QRGenerator) GenerateEncryptedQR(payload TicketPayload, size int) ([]byte, error) {
	token, err := q.Encrypt(payload)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(token, qrcode.Medium, size)
}

func (q *QRGenerator) Encrypt(payload TicketPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return encryptAES(data, q.secret)
}

// Decrypt reverses Encrypt. Used when a ticket is presented for verification.
func (q *QRGenerator) Decrypt(token string) (TicketPayload, error) {
	var payload TicketPayload
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return payload, err
	}
	if len(raw) < aes.BlockSize {
		return payload, errors.New("qr token too short")
	}

	block, err := aes.NewCipher(q.secret)
	if err != nil {
		return payload, err
	}
	data := make([]byte, len(raw)-aes.BlockSize)
	cipher.NewCFBDecrypter(block, raw[:aes.BlockSize]).XORKeyStream(data, raw[aes.BlockSize:])

	err = json.Unmarshal(data, &payload)
	return payload, err
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}
