package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/gema-gate-api/internal/repository"
)

const exportSheet = "Achados e Perdidos"

var exportHeader = []interface{}{
	"ID", "Descrição", "Local", "Status", "Registrado por", "Registrado em",
	"Aluno", "Série", "Turma", "Turno", "Retirado em", "Entregue em", "Foto",
}

// Export renders the unit's registry as an xlsx workbook.
func (s *lostFoundService) Export(ctx context.Context, unit string) ([]byte, error) {
	if unit == "" {
		return nil, ErrSessionRequired
	}

	items, err := s.repo.List(ctx, repository.LostFoundFilter{Unit: unit})
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to close export workbook")
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return nil, fmt.Errorf("rename export sheet: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return nil, fmt.Errorf("write export header: %w", err)
	}

	for i, item := range items {
		row := []interface{}{
			item.ID,
			item.Description,
			item.LocationFound,
			string(item.Status),
			item.CreatedBy,
			s.localizer.FormatTime(item.Timestamp),
			item.ClaimedBy.StudentName,
			item.ClaimedBy.Grade,
			item.ClaimedBy.Class,
			item.ClaimedBy.Shift,
			"",
			"",
			item.PhotoURL,
		}
		if item.ClaimedAt != nil {
			row[10] = s.localizer.FormatTime(*item.ClaimedAt)
		}
		if item.DeliveredAt != nil {
			row[11] = s.localizer.FormatTime(*item.DeliveredAt)
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write export row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write export workbook: %w", err)
	}
	return buf.Bytes(), nil
}
