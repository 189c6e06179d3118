package dto

// ScanRequest submits a scanned QR code for attendance marking. The code may
// be the raw token or the scan URL embedding it as the "code" query param.
type ScanRequest struct {
	Code string `json:"code" validate:"required"`
}

// CertificateResponse returns a signed download URL for a certificate.
type CertificateResponse struct {
	RegistrationID int64  `json:"registration_id"`
	DownloadURL    string `json:"download_url"`
	ExpiresAt      string `json:"expires_at"`
}
