// Package report renders ledger reports for people rather than programs.
package report

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
	"github.com/warp/leave-ledger/leave"
)

var carryForwardColumns = []struct {
	title string
	width float64
}{
	{"Employee", 40},
	{"Leave type", 40},
	{"Yearly", 25},
	{"Carry fwd", 25},
	{"Taken", 25},
	{"Remaining", 25},
	{"CF expiry", 30},
}

// CarryForwardPDF writes the carry-forward report as a landscape A4 table.
func CarryForwardPDF(w io.Writer, r *leave.CarryForwardReport) error {
	if r == nil {
		return fmt.Errorf("carry-forward report is nil")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Carry-forward report", false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Carry-forward report")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("As of: %s", r.AsOf))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Employees: %d   Entitlements: %d   Total carry-forward: %s   Total remaining: %s",
		r.Summary.Employees, r.Summary.Entitlements,
		r.Summary.TotalCarryForward.StringFixed(2), r.Summary.TotalRemaining.StringFixed(2)))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, col := range carryForwardColumns {
		pdf.CellFormat(col.width, 7, col.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, row := range r.Rows {
		expiry := "-"
		if row.CarryForwardExpiry != nil {
			expiry = row.CarryForwardExpiry.String()
		}
		name := row.LeaveTypeName
		if name == "" {
			name = string(row.LeaveTypeID)
		}
		cells := []string{
			string(row.EmployeeID),
			name,
			row.YearlyEntitlement.StringFixed(2),
			row.CarryForward.StringFixed(2),
			row.Taken.StringFixed(2),
			row.Remaining.StringFixed(2),
			expiry,
		}
		for i, col := range carryForwardColumns {
			align := "R"
			if i < 2 {
				align = "L"
			}
			pdf.CellFormat(col.width, 6, cells[i], "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render carry-forward report: %w", err)
	}
	return nil
}
