package service

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// QRTokenRef is the structured content of an attendance QR token.
type QRTokenRef struct {
	RegistrationID int64
	EventID        int64
	StudentID      int64
	Nonce          string
}

// BuildQRToken mints the scannable token for a registration. Format:
// REG-<regID>-EVT-<eventID>-STU-<studentID>-<8 hex chars>.
func BuildQRToken(registrationID, eventID, studentID int64) string {
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("REG-%d-EVT-%d-STU-%d-%s", registrationID, eventID, studentID, nonce)
}

// ParseQRToken decodes a scanned code. Scanners may submit either the raw
// token or the full scan URL carrying it in a "code" query parameter.
func ParseQRToken(code string) (QRTokenRef, error) {
	raw := strings.TrimSpace(code)
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		parsed, err := url.Parse(raw)
		if err != nil {
			return QRTokenRef{}, fmt.Errorf("invalid scan url: %w", err)
		}
		raw = parsed.Query().Get("code")
		if raw == "" {
			return QRTokenRef{}, fmt.Errorf("scan url carries no code parameter")
		}
	}

	parts := strings.Split(raw, "-")
	if len(parts) != 7 || parts[0] != "REG" || parts[2] != "EVT" || parts[4] != "STU" {
		return QRTokenRef{}, fmt.Errorf("malformed attendance token")
	}
	regID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return QRTokenRef{}, fmt.Errorf("malformed registration id in token")
	}
	eventID, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return QRTokenRef{}, fmt.Errorf("malformed event id in token")
	}
	studentID, err := strconv.ParseInt(parts[5], 10, 64)
	if err != nil {
		return QRTokenRef{}, fmt.Errorf("malformed student id in token")
	}
	return QRTokenRef{
		RegistrationID: regID,
		EventID:        eventID,
		StudentID:      studentID,
		Nonce:          parts[6],
	}, nil
}

// RawToken reconstructs the canonical token string.
func (r QRTokenRef) RawToken() string {
	return fmt.Sprintf("REG-%d-EVT-%d-STU-%d-%s", r.RegistrationID, r.EventID, r.StudentID, r.Nonce)
}
