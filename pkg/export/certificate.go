package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Certificate describes the fields printed on an attendance certificate.
type Certificate struct {
	StudentName string
	EventTitle  string
	EventDate   string
	VenueName   string
	Organizer   string
	SerialNo    string
}

// CertificateRenderer produces landscape A4 participation certificates.
type CertificateRenderer struct{}

// NewCertificateRenderer constructs a renderer.
func NewCertificateRenderer() *CertificateRenderer {
	return &CertificateRenderer{}
}

// Render draws the certificate and returns the PDF bytes.
func (r *CertificateRenderer) Render(cert Certificate) ([]byte, error) {
	if cert.StudentName == "" || cert.EventTitle == "" {
		return nil, fmt.Errorf("certificate requires student name and event title")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(20, 25, 20)
	pdf.AddPage()

	pdf.SetDrawColor(60, 60, 120)
	pdf.SetLineWidth(1.2)
	pdf.Rect(10, 10, 277, 190, "D")

	pdf.SetFont("Arial", "B", 26)
	pdf.CellFormat(0, 18, "CERTIFICATE OF PARTICIPATION", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 13)
	pdf.CellFormat(0, 8, "This is to certify that", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 12, cert.StudentName, "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 13)
	line := fmt.Sprintf("participated in \"%s\"", cert.EventTitle)
	if cert.EventDate != "" {
		line += fmt.Sprintf(" held on %s", cert.EventDate)
	}
	if cert.VenueName != "" {
		line += fmt.Sprintf(" at %s", cert.VenueName)
	}
	pdf.MultiCell(0, 8, line, "", "C", false)
	pdf.Ln(14)

	if cert.Organizer != "" {
		pdf.SetFont("Arial", "I", 11)
		pdf.CellFormat(0, 8, "Organized by "+cert.Organizer, "", 1, "C", false, 0, "")
	}

	if cert.SerialNo != "" {
		pdf.SetFont("Arial", "", 8)
		pdf.SetY(-25)
		pdf.CellFormat(0, 6, "Serial: "+strings.ToUpper(cert.SerialNo), "", 1, "L", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}
