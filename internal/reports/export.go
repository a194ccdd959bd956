package reports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// Attachment is a rendered report document handed to the sender alongside
// the summary. Content marshals as base64 in JSON payloads.
type Attachment struct {
	Name    string `json:"name"`
	MIME    string `json:"mime"`
	Content []byte `json:"content"`
}

// Formatter renders a report into a deliverable attachment.
type Formatter interface {
	Format(report Report) (Attachment, error)
}

// PDFFormatter renders reports as PDF attachments.
type PDFFormatter struct{}

// Format implements Formatter.
func (PDFFormatter) Format(report Report) (Attachment, error) {
	content, err := BuildReportPDF(report)
	if err != nil {
		return Attachment{}, fmt.Errorf("pdf formatter: %w", err)
	}
	return Attachment{
		Name:    attachmentName(report, "pdf"),
		MIME:    "application/pdf",
		Content: content,
	}, nil
}

// XLSXFormatter renders reports as spreadsheet attachments.
type XLSXFormatter struct{}

// Format implements Formatter.
func (XLSXFormatter) Format(report Report) (Attachment, error) {
	content, err := BuildReportXLSX(report)
	if err != nil {
		return Attachment{}, fmt.Errorf("xlsx formatter: %w", err)
	}
	return Attachment{
		Name:    attachmentName(report, "xlsx"),
		MIME:    "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Content: content,
	}, nil
}

func attachmentName(report Report, extension string) string {
	return fmt.Sprintf("%s-occupancy-report-%s.%s", report.Cadence, report.LocationID, extension)
}

// BuildReportPDF renders a report as a minimal PDF.
func BuildReportPDF(report Report) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, fmt.Sprintf("%s Occupancy Report", titleCadence(report.Cadence)))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Location: %s", report.LocationName))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s - %s",
		report.PeriodStart.Format(time.RFC3339), report.PeriodEnd.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total Served: %d", report.TotalServed))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Bucket", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Mean Occupancy", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Samples", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, point := range report.OccupancyTrend {
		pdf.CellFormat(50, 6, point.Bucket, "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, fmt.Sprintf("%.2f", point.MeanOccupancy), "1", 0, "R", false, 0, "")
		pdf.CellFormat(45, 6, fmt.Sprintf("%d", point.SampleCount), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	if len(report.PeakHours) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(0, 6, "Peak Hours")
		pdf.Ln(6)
		pdf.SetFont("Arial", "", 10)
		for _, slot := range report.PeakHours {
			pdf.Cell(0, 6, fmt.Sprintf("%s  %s  (mean %.2f)", slot.Hour, slot.Label, slot.MeanOccupancy))
			pdf.Ln(5)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReportXLSX renders a report as a workbook with one sheet per view.
func BuildReportXLSX(report Report) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	const trendSheet = "Occupancy Trend"
	index, err := file.NewSheet(trendSheet)
	if err != nil {
		return nil, err
	}
	file.SetActiveSheet(index)
	if err := file.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	headers := []any{"Bucket", "Mean Occupancy", "Samples"}
	if err := file.SetSheetRow(trendSheet, "A1", &headers); err != nil {
		return nil, err
	}
	for i, point := range report.OccupancyTrend {
		row := []any{point.Bucket, point.MeanOccupancy, point.SampleCount}
		cell := fmt.Sprintf("A%d", i+2)
		if err := file.SetSheetRow(trendSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	const dwellSheet = "Dwell Histogram"
	if _, err := file.NewSheet(dwellSheet); err != nil {
		return nil, err
	}
	dwellHeaders := []any{"Minute", "Count", "Share"}
	if err := file.SetSheetRow(dwellSheet, "A1", &dwellHeaders); err != nil {
		return nil, err
	}
	for i, bucket := range report.DwellHistogram {
		row := []any{bucket.Minute, bucket.Count, bucket.Share}
		cell := fmt.Sprintf("A%d", i+2)
		if err := file.SetSheetRow(dwellSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func titleCadence(cadence Cadence) string {
	if cadence == CadenceWeekly {
		return "Weekly"
	}
	return "Daily"
}
