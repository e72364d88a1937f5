package negotiation

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// RenderTranscript produces a PDF transcript of the session's message log
// for the dashboard's export surface.
func RenderTranscript(s *Session) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Negotiation Transcript")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Session: %s", s.ID))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Product: %s  |  Buyer: %s", s.Deal.Product, s.Buyer.CompanyName))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Stage: %s  |  Success probability: %d%%", s.Stage, s.SuccessProbability))
	pdf.Ln(10)

	for _, msg := range s.Messages {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.Cell(0, 6, fmt.Sprintf("[%s] %s - %s",
			msg.Timestamp.Format("2006-01-02 15:04"), msg.Sender, msg.Type))
		pdf.Ln(6)

		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, msg.Content, "", "L", false)
		pdf.Ln(4)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render transcript: %w", err)
	}
	return buf.Bytes(), nil
}
