package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"lucremais-task/models"

	"github.com/xuri/excelize/v2"
)

// XLSXContentType is the MIME type of BuildPayoutReport output.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Uploader stores a finished report somewhere durable (R2 in production).
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

type ReportService struct {
	Payouts  *PayoutService
	Uploader Uploader // optional
}

func NewReportService(payouts *PayoutService, uploader Uploader) *ReportService {
	return &ReportService{Payouts: payouts, Uploader: uploader}
}

var payoutReportHeaders = []string{"ID", "Telegram ID", "Dia", "Pontos", "Valor (R$)", "Chave PIX", "CPF", "Status", "Comentário", "Solicitado em", "Decidido em"}

// BuildPayoutReport renders payout requests of one status (all when empty)
// with a day in [from, to] as an xlsx workbook.
func (s *ReportService) BuildPayoutReport(ctx context.Context, status models.PayoutStatus, from, to string) ([]byte, error) {
	rows, err := s.Payouts.ListPayoutsBetween(ctx, status, from, to)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Saques"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("new sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	for i, h := range payoutReportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	loc := s.Payouts.Clock.Location()
	for i, p := range rows {
		r := i + 2
		value, _ := p.Value.Float64()
		decided := ""
		if p.DecidedAt != nil {
			decided = p.DecidedAt.In(loc).Format("02/01/2006 15:04")
		}
		values := []interface{}{
			p.ID,
			p.UserID,
			p.Day,
			p.Points,
			value,
			p.DestinationKey,
			p.TaxID,
			string(p.Status),
			p.AdminComment,
			p.RequestedAt.In(loc).Format("02/01/2006 15:04"),
			decided,
		}
		cell, _ := excelize.CoordinatesToCellName(1, r)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write report row %d: %w", r, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render payout report: %w", err)
	}
	return buf.Bytes(), nil
}

// UploadDailyReport renders the payouts requested on day and hands them to
// the uploader. Returns "" when no uploader is configured.
func (s *ReportService) UploadDailyReport(ctx context.Context, day string) (string, error) {
	if s.Uploader == nil {
		return "", nil
	}
	body, err := s.BuildPayoutReport(ctx, "", day, day)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("reports/payouts/%s.xlsx", day)
	url, err := s.Uploader.Upload(ctx, key, body, XLSXContentType)
	if err != nil {
		return "", err
	}
	log.Printf("[REPORTS] ✅ Uploaded payout report %s (%d bytes)", key, len(body))
	return url, nil
}

// ReportFilename names an exported report for download.
func ReportFilename(now time.Time) string {
	return fmt.Sprintf("saques_%s.xlsx", now.Format("20060102_150405"))
}
