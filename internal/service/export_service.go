package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/swimbuddz/academy-api/internal/models"
	appErrors "github.com/swimbuddz/academy-api/pkg/errors"
	"github.com/swimbuddz/academy-api/pkg/export"
)

// StatementFormat selects the rendered statement output.
type StatementFormat string

const (
	StatementCSV StatementFormat = "csv"
	StatementPDF StatementFormat = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type payoutDetailReader interface {
	ListDetailByCoach(ctx context.Context, coachID string, from, to time.Time) ([]models.PayoutDetail, error)
}

// Statement is a rendered payout statement ready for download.
type Statement struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders coach payout statements.
type ExportService struct {
	payouts payoutDetailReader
	csv     csvRenderer
	pdf     pdfRenderer
	logger  *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(payouts payoutDetailReader, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{payouts: payouts, csv: csv, pdf: pdf, logger: logger}
}

var statementHeaders = []string{"Program", "Cohort", "Block", "Period", "Enrolled", "Revenue", "Base %", "Modifiers", "Amount", "Currency"}

// CoachStatement renders the coach's payouts for a period as CSV or PDF.
func (s *ExportService) CoachStatement(ctx context.Context, coachID string, from, to time.Time, format StatementFormat) (*Statement, error) {
	details, err := s.payouts.ListDetailByCoach(ctx, coachID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payouts for statement")
	}

	dataset := export.Dataset{Headers: statementHeaders}
	var total int64
	currency := ""
	for _, detail := range details {
		total += detail.Amount
		currency = detail.Currency
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Program":   detail.ProgramName,
			"Cohort":    detail.CohortName,
			"Block":     strconv.Itoa(detail.BlockNumber),
			"Period":    fmt.Sprintf("%s - %s", detail.BlockStart.Format("2006-01-02"), detail.BlockEnd.Format("2006-01-02")),
			"Enrolled":  strconv.Itoa(detail.EnrolledCount),
			"Revenue":   formatMinorUnits(detail.Revenue),
			"Base %":    strconv.Itoa(detail.BasePercent),
			"Modifiers": fmt.Sprintf("+%d", detail.ModifierTotal),
			"Amount":    formatMinorUnits(detail.Amount),
			"Currency":  detail.Currency,
		})
	}
	if len(details) > 0 {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Program": "TOTAL",
			"Amount":  formatMinorUnits(total),
			// Mixed currencies are not summed meaningfully; the per-row
			// currency column is authoritative.
			"Currency": currency,
		})
	}

	title := fmt.Sprintf("Coach payout statement %s to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	base := fmt.Sprintf("payout-statement-%s-%s", coachID, from.Format("20060102"))
	switch format {
	case StatementCSV:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv statement")
		}
		return &Statement{Filename: base + ".csv", ContentType: "text/csv", Payload: payload}, nil
	case StatementPDF:
		payload, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf statement")
		}
		return &Statement{Filename: base + ".pdf", ContentType: "application/pdf", Payload: payload}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported statement format %q", format))
	}
}

// formatMinorUnits renders an amount in minor units as a decimal string.
func formatMinorUnits(amount int64) string {
	return fmt.Sprintf("%d.%02d", amount/100, amount%100)
}
