package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice2order/internal/entity"
	"github.com/joseph-ayodele/invoice2order/internal/repository"
	"github.com/joseph-ayodele/invoice2order/internal/utils"
)

const (
	ordersSheet   = "Orders"
	findingsSheet = "Findings"
)

var orderHeaders = []string{
	"Source",
	"Page",
	"Status",
	"Order ID",
	"Invoice No",
	"Order Date",
	"Customer",
	"Pincode",
	"Items",
	"Sub Total",
	"Payment",
	"Method",
	"Errors",
	"Warnings",
	"Error",
	"Run ID",
}

var findingHeaders = []string{"Run ID", "Source", "Page", "Field", "Severity", "Message"}

// Service produces XLSX reports over the run ledger.
type Service struct {
	runs   repository.RunRepository
	logger *slog.Logger
}

func NewService(runs repository.RunRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{runs: runs, logger: logger}
}

// ExportRunsXLSX returns a workbook for the runs matching f.
func (s *Service) ExportRunsXLSX(ctx context.Context, f repository.ListFilter) ([]byte, error) {
	start := time.Now()
	runs, err := s.runs.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	b, err := RunsXLSX(runs)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.xlsx.ok",
		"rows", len(runs),
		"bytes", len(b),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return b, nil
}

// RunsXLSX renders runs into an Orders sheet (one row per run) and a
// Findings sheet (one row per validation finding).
func RunsXLSX(runs []repository.Run) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", ordersSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(findingsSheet); err != nil {
		return nil, err
	}
	if err := writeHeader(f, ordersSheet, orderHeaders); err != nil {
		return nil, err
	}
	if err := writeHeader(f, findingsSheet, findingHeaders); err != nil {
		return nil, err
	}

	findingRow := 2
	for i, r := range runs {
		var p entity.OrderPayload
		if r.Payload != "" {
			_ = json.Unmarshal([]byte(r.Payload), &p)
		}
		row := []any{
			r.Source,
			r.PageIndex + 1,
			string(r.Status),
			r.OrderID,
			utils.StrOrEmpty(p.InvoiceNumber),
			p.OrderDate,
			p.BillingCustomerName,
			p.BillingPincode,
			len(p.OrderItems),
			p.SubTotal.StringFixed(2),
			p.PaymentMethod,
			r.ExtractionMethod,
			r.ErrorCount,
			r.WarningCount,
			truncate(r.Error, 200),
			r.ID,
		}
		if r.Payload == "" {
			row[9] = ""
		}
		if err := writeRow(f, ordersSheet, i+2, row); err != nil {
			return nil, err
		}

		var report entity.ValidationReport
		if r.Report != "" {
			_ = json.Unmarshal([]byte(r.Report), &report)
		}
		for _, fd := range report.Findings {
			if err := writeRow(f, findingsSheet, findingRow, []any{r.ID, r.Source, r.PageIndex + 1, fd.Field, string(fd.Severity), fd.Message}); err != nil {
				return nil, err
			}
			findingRow++
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(ordersSheet, "A", "A", 48) // source
	_ = f.SetColWidth(ordersSheet, "D", "G", 22) // order id, invoice no, date, customer
	_ = f.SetColWidth(ordersSheet, "O", "P", 40) // error, run id
	_ = f.SetColWidth(findingsSheet, "A", "B", 40)
	_ = f.SetColWidth(findingsSheet, "D", "D", 24)
	_ = f.SetColWidth(findingsSheet, "F", "F", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, headers []string) error {
	cells := make([]any, len(headers))
	for i, h := range headers {
		cells[i] = h
	}
	if err := writeRow(f, sheet, 1, cells); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
