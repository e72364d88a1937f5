package execution

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExportDealFlow renders finalized plans as an XLSX workbook for the
// dashboard's download surface.
func ExportDealFlow(plans []*Plan) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Deal Flow"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{
		"Plan ID", "Opportunity ID", "Outcome", "Steps Completed",
		"Total Steps", "Timeline (days)", "Success Probability (%)", "Finalized At",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err == nil {
		endCell, _ := excelize.CoordinatesToCellName(len(headers), 1)
		f.SetCellStyle(sheet, "A1", endCell, headerStyle)
	}

	for row, p := range plans {
		completed := 0
		for _, s := range p.Steps {
			if s.Status == StepCompleted {
				completed++
			}
		}

		outcome := ""
		if p.Outcome != nil {
			outcome = *p.Outcome
		}

		values := []interface{}{
			p.ID.String(),
			p.OpportunityID.String(),
			outcome,
			completed,
			len(p.Steps),
			p.TotalTimelineDays,
			p.SuccessProbability,
			p.UpdatedAt.Format("2006-01-02 15:04"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
