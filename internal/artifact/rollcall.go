package artifact

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"campusattend/internal/session"
)

// RollCall renders roll-call sheets as PDF.
type RollCall struct{}

// NewRollCall creates the renderer.
func NewRollCall() *RollCall {
	return &RollCall{}
}

// Render produces a tabular sheet: sequence number, student number, name,
// redemption time, in the order the redemptions were stored.
func (r *RollCall) Render(sheet session.RollCallSheet) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Roll call", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, fmt.Sprintf("%s - %s", sheet.Course.Code, sheet.Course.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("%s, %d %s", sheet.Date.Format("2006-01-02"), sheet.Course.Year, sheet.Course.Semester), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	widths := []float64{12, 35, 93, 50}
	headers := []string{"#", "Number", "Name", "Redeemed at"}
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for i, red := range sheet.Redemptions {
		pdf.CellFormat(widths[0], 7, fmt.Sprintf("%d", i+1), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[1], 7, red.StudentNumber, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 7, red.StudentName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 7, red.RedeemedAt.Format("2006-01-02 15:04:05"), "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}
	if len(sheet.Redemptions) == 0 {
		pdf.CellFormat(0, 7, "No redemptions recorded.", "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
