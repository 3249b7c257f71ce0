package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stayflow/internal/domain"
	"stayflow/internal/logging"
	"stayflow/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// Exporter renders bookings and audit history into Excel workbooks under a
// configured directory.
type Exporter struct {
	store  domain.Store
	path   string
	logger zerolog.Logger
}

func New(store domain.Store, path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{store: store, path: path, logger: logging.Component(logger, "export")}
}

// ExportBookings создает Excel файл с бронями за период.
func (e *Exporter) ExportBookings(ctx context.Context, startDate, endDate time.Time) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	bookings, err := e.store.ListBookingsByDateRange(ctx, startDate, endDate)
	if err != nil {
		return "", fmt.Errorf("error getting bookings: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Брони"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Период: %s - %s",
		startDate.Format("02.01.2006"), endDate.Format("02.01.2006")))
	_ = f.MergeCell(sheetName, "A1", "J1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headers := []string{
		"Номер", "Статус", "Оплата", "Гость", "Email",
		"Сумма", "Оплачено", "Остаток", "Создана", "Обновлена",
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, booking := range bookings {
		row := i + 3
		_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), booking.ShortRef)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), statusLabel(booking.Status))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), paymentLabel(booking.PaymentStatus))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), booking.GuestName)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), booking.GuestEmail)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), minorToMajor(booking.TotalAmount))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), minorToMajor(booking.AmountPaid))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), minorToMajor(booking.AmountDue))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), booking.CreatedAt.Format("02.01.2006 15:04"))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("J%d", row), booking.UpdatedAt.Format("02.01.2006 15:04"))

		if styleID, err := statusRowStyle(f, booking); err == nil {
			first, _ := excelize.CoordinatesToCellName(1, row)
			last, _ := excelize.CoordinatesToCellName(len(headers), row)
			_ = f.SetCellStyle(sheetName, first, last, styleID)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 14)
	_ = f.SetColWidth(sheetName, "B", "C", 16)
	_ = f.SetColWidth(sheetName, "D", "E", 25)
	_ = f.SetColWidth(sheetName, "F", "H", 12)
	_ = f.SetColWidth(sheetName, "I", "J", 18)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("bookings_%s_to_%s.xlsx",
		startDate.Format("2006-01-02"),
		endDate.Format("2006-01-02"))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("bookings", len(bookings)).Msg("Excel file created")
	return filePath, nil
}

// ExportAuditTrail создает Excel файл с журналом изменений.
func (e *Exporter) ExportAuditTrail(ctx context.Context, entityType string, limit int) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}
	if limit <= 0 {
		limit = 1000
	}

	entries, err := e.store.ListAuditEntries(ctx, entityType, limit)
	if err != nil {
		return "", fmt.Errorf("error getting audit entries: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Журнал"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{"Время", "Действие", "Объект", "ID", "Кто", "Было", "Стало"}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, entry := range entries {
		row := i + 2
		actor := "system"
		if entry.ActorID != nil {
			actor = fmt.Sprintf("%d", *entry.ActorID)
		}
		_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), entry.CreatedAt.Format("02.01.2006 15:04:05"))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), entry.Action)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), entry.EntityType)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), entry.EntityID)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), actor)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), flattenValues(entry.OldValues))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), flattenValues(entry.NewValues))
	}

	_ = f.SetColWidth(sheetName, "A", "A", 20)
	_ = f.SetColWidth(sheetName, "B", "E", 14)
	_ = f.SetColWidth(sheetName, "F", "G", 40)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("audit_%s_%s.xlsx", entityType, time.Now().Format("2006-01-02_15-04-05"))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("entries", len(entries)).Msg("Audit Excel file created")
	return filePath, nil
}

func statusRowStyle(f *excelize.File, booking *models.Booking) (int, error) {
	color := "#FFFFFF"
	switch booking.Status {
	case models.StatusConfirmed, models.StatusCompleted:
		color = "#C6EFCE"
	case models.StatusPending:
		color = "#FFEB9C"
	case models.StatusCancelled:
		color = "#FFC7CE"
	}
	return f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	})
}

func statusLabel(status string) string {
	switch status {
	case models.StatusPending:
		return "Ожидает"
	case models.StatusConfirmed:
		return "Подтверждена"
	case models.StatusCancelled:
		return "Отменена"
	case models.StatusCompleted:
		return "Завершена"
	}
	return status
}

func paymentLabel(status string) string {
	switch status {
	case models.PaymentUnpaid:
		return "Не оплачена"
	case models.PaymentPartiallyPaid:
		return "Частично"
	case models.PaymentPaid:
		return "Оплачена"
	case models.PaymentRefunded:
		return "Возврат"
	case models.PaymentFailed:
		return "Ошибка"
	case models.PaymentExpired:
		return "Истекла"
	}
	return status
}

func minorToMajor(minor int64) float64 {
	return float64(minor) / 100
}

func flattenValues(values map[string]string) string {
	if len(values) == 0 {
		return ""
	}
	out := ""
	for key, value := range values {
		if out != "" {
			out += "; "
		}
		out += key + "=" + value
	}
	return out
}
