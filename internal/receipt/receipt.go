package receipt

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/skip2/go-qrcode"

	"ms-raffle/internal/models"
	"ms-raffle/internal/ticketnum"
)

// Receipt proves a holder paid for a number. It travels sealed inside a QR
// code and is checked against the store when scanned.
type Receipt struct {
	RaffleID string    `json:"raffle_id"`
	Number   string    `json:"number"`
	HolderID string    `json:"holder_id"`
	PaidAt   time.Time `json:"paid_at"`
}

// Sealer encrypts receipts with AES-GCM under a key derived from a secret.
type Sealer struct {
	aead cipher.AEAD
}

func NewSealer(secret string) (*Sealer, error) {
	key := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// Seal returns a URL-safe token carrying the encrypted receipt.
func (s *Sealer) Seal(r Receipt) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := s.aead.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a token produced by Seal.
func (s *Sealer) Open(token string) (*Receipt, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) < s.aead.NonceSize() {
		return nil, models.ErrInvalidReceipt
	}
	nonce, body := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	data, err := s.aead.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, models.ErrInvalidReceipt
	}
	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, models.ErrInvalidReceipt
	}
	return &r, nil
}

// QR renders the sealed receipt as a PNG QR code.
func (s *Sealer) QR(r Receipt) ([]byte, error) {
	token, err := s.Seal(r)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(token, qrcode.Medium, 256)
}

type RaffleReader interface {
	GetRaffle(ctx context.Context, id string) (*models.Raffle, error)
}

type TicketReader interface {
	GetTicket(ctx context.Context, raffleID, number string) (*models.TicketRecord, error)
}

// Service issues receipts for paid tickets and verifies scanned ones.
type Service struct {
	Raffles RaffleReader
	Tickets TicketReader
	Sealer  *Sealer
}

func NewService(raffles RaffleReader, tickets TicketReader, sealer *Sealer) *Service {
	return &Service{Raffles: raffles, Tickets: tickets, Sealer: sealer}
}

// Issue builds the receipt of a paid number and its QR image.
func (s *Service) Issue(ctx context.Context, raffleID, number string) (*Receipt, []byte, error) {
	raffle, err := s.Raffles.GetRaffle(ctx, raffleID)
	if err != nil {
		return nil, nil, err
	}
	formatted, err := ticketnum.Canonical(number, raffle.TotalTickets)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %q", models.ErrInvalidNumber, number)
	}
	rec, err := s.Tickets.GetTicket(ctx, raffleID, formatted)
	if err != nil {
		return nil, nil, fmt.Errorf("get ticket %s of %s: %w", formatted, raffleID, err)
	}
	if rec == nil || rec.Status != models.TicketPaid {
		return nil, nil, fmt.Errorf("%w: %s", models.ErrTicketNotPaid, formatted)
	}

	r := Receipt{RaffleID: raffleID, Number: formatted, HolderID: rec.HolderID, PaidAt: rec.PaidAt}
	png, err := s.Sealer.QR(r)
	if err != nil {
		return nil, nil, fmt.Errorf("encode receipt qr: %w", err)
	}
	return &r, png, nil
}

// Verify opens a scanned token and checks the number is still paid by the
// same holder.
func (s *Service) Verify(ctx context.Context, raffleID, token string) (*Receipt, error) {
	r, err := s.Sealer.Open(token)
	if err != nil {
		return nil, err
	}
	if r.RaffleID != raffleID {
		return nil, fmt.Errorf("%w: issued for raffle %s", models.ErrInvalidReceipt, r.RaffleID)
	}
	rec, err := s.Tickets.GetTicket(ctx, raffleID, r.Number)
	if err != nil {
		return nil, fmt.Errorf("get ticket %s of %s: %w", r.Number, raffleID, err)
	}
	if rec == nil || rec.Status != models.TicketPaid || rec.HolderID != r.HolderID {
		return nil, fmt.Errorf("%w: %s no longer paid by %s", models.ErrInvalidReceipt, r.Number, r.HolderID)
	}
	return r, nil
}
