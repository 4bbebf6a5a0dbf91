package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Letter holds the fields rendered into an official dispatch letter.
type Letter struct {
	Number        string
	IssuerName    string
	SchoolName    string
	AgencyName    string
	Topic         string
	Audience      []string
	Participants  int
	Location      string
	Duration      int
	PreferredSlot string
	Notes         string
	IssuedAt      time.Time
}

// LetterRenderer renders dispatch letters as PDF documents.
type LetterRenderer struct{}

// NewLetterRenderer constructs a letter renderer.
func NewLetterRenderer() *LetterRenderer {
	return &LetterRenderer{}
}

// Render produces the PDF bytes for a dispatch letter.
func (r *LetterRenderer) Render(letter Letter) ([]byte, error) {
	if letter.Topic == "" {
		return nil, fmt.Errorf("letter requires a topic")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, strings.ToUpper(letter.IssuerName), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, "Official Activity Request", "B", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Ref: %s", letter.Number), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Date: %s", letter.IssuedAt.Format("2 January 2006")), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("To: %s", letter.AgencyName), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	intro := fmt.Sprintf(
		"On behalf of %s, we kindly request your agency's support for the following environmental education activity.",
		letter.SchoolName,
	)
	pdf.MultiCell(0, 5, intro, "", "L", false)
	pdf.Ln(3)

	rows := [][2]string{
		{"Topic", letter.Topic},
		{"Audience", strings.Join(letter.Audience, ", ")},
		{"Estimated participants", fmt.Sprintf("%d", letter.Participants)},
		{"Location", letter.Location},
		{"Duration", fmt.Sprintf("%d minutes", letter.Duration)},
		{"Preferred schedule", letter.PreferredSlot},
	}
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(55, 7, row[0], "1", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 7, row[1], "1", 1, "L", false, 0, "")
	}

	if letter.Notes != "" {
		pdf.Ln(3)
		pdf.SetFont("Arial", "I", 9)
		pdf.MultiCell(0, 5, "Notes: "+letter.Notes, "", "L", false)
	}

	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 5, "We would appreciate your confirmation of availability and the assignment of a facilitation team.", "", "L", false)

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render letter: %w", err)
	}
	return buf.Bytes(), nil
}
