package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/clubhub-dev/clubhub-api/internal/models"
	"github.com/clubhub-dev/clubhub-api/pkg/export"
)

type rollupProvider interface {
	Rollup(ctx context.Context) (*models.AttendanceRollup, error)
}

// ExportService renders the attendance rollup as downloadable files.
type ExportService struct {
	rollups rollupProvider
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	logger  *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(rollups rollupProvider, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		rollups: rollups,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		logger:  logger,
	}
}

// RollupCSV renders the rollup as CSV bytes.
func (s *ExportService) RollupCSV(ctx context.Context) ([]byte, error) {
	data, err := s.rollupDataset(ctx)
	if err != nil {
		return nil, err
	}
	return s.csv.Render(*data)
}

// RollupPDF renders the rollup as a PDF document.
func (s *ExportService) RollupPDF(ctx context.Context) ([]byte, error) {
	data, err := s.rollupDataset(ctx)
	if err != nil {
		return nil, err
	}
	return s.pdf.Render(*data, "Attendance Rollup")
}

func (s *ExportService) rollupDataset(ctx context.Context) (*export.Dataset, error) {
	rollup, err := s.rollups.Rollup(ctx)
	if err != nil {
		return nil, err
	}
	data := export.Dataset{
		Headers: []string{"Name", "Attended", "Meetings", "Percentage"},
		Rows:    make([]map[string]string, 0, len(rollup.Students)),
	}
	for _, row := range rollup.Students {
		data.Rows = append(data.Rows, map[string]string{
			"Name":       row.Name,
			"Attended":   strconv.FormatFloat(row.AttendedWeight, 'f', -1, 64),
			"Meetings":   strconv.Itoa(row.TotalMeetings),
			"Percentage": fmt.Sprintf("%d%%", row.Percentage),
		})
	}
	return &data, nil
}
