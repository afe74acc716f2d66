package exporter

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"tremor/pkg/contracts/domain"
)

// StudyExporter renders event-study results as downloadable workbooks.
type StudyExporter struct{}

// NewStudyExporter creates a study result exporter
func NewStudyExporter() *StudyExporter {
	return &StudyExporter{}
}

// WriteWorkbook writes a two-sheet XLSX workbook for one study result:
// a Summary sheet with the regression, placebos and verdict, and an Events
// sheet with the per-event rows including exclusions.
func (e *StudyExporter) WriteWorkbook(w io.Writer, result *domain.EventStudyResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := e.writeSummarySheet(f, result); err != nil {
		return err
	}
	if err := e.writeEventsSheet(f, result); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (e *StudyExporter) writeSummarySheet(f *excelize.File, result *domain.EventStudyResult) error {
	const sheet = "Summary"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to rename summary sheet: %w", err)
	}

	rows := [][]interface{}{
		{"Study ID", result.ID},
		{"Transform ID", result.TransformID},
		{"Target Node", result.TargetNode},
		{"Created At", result.CreatedAt.Format("2006-01-02 15:04:05")},
		{},
		{"Pre Window (days)", result.PreWindowDays},
		{"Post Window (days)", result.PostWindowDays},
		{"Gap (days)", result.GapDays},
		{"Overlap Buffer (days)", result.OverlapBufferDays},
		{},
		{"Events Available", result.NumEvents},
		{"Events Used", result.NumEventsUsed},
		{"Events Excluded", result.NumEventsExcluded},
		{},
		{"Coefficient", result.Regression.Coefficient},
		{"Std Error (HC1)", result.Regression.StdError},
		{"T Statistic", result.Regression.TStatistic},
		{"P Value", result.Regression.PValue},
		{"R Squared", result.Regression.RSquared},
		{"CI Lower", result.Regression.ConfIntLower},
		{"CI Upper", result.Regression.ConfIntUpper},
		{"Intercept", result.Regression.Intercept},
		{},
		{"Placebo Pre-Drift", placeboVerdict(result.PlaceboPreDrift)},
		{"Placebo Zero-Surprise", placeboVerdict(result.PlaceboZero)},
		{},
		{"Is Causal", result.IsCausal},
		{"Confidence", string(result.Confidence)},
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell := "A" + strconv.Itoa(i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row %d: %w", i+1, err)
		}
	}
	return nil
}

func (e *StudyExporter) writeEventsSheet(f *excelize.File, result *domain.EventStudyResult) error {
	const sheet = "Events"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create events sheet: %w", err)
	}

	headers := []interface{}{
		"Event ID", "Timestamp", "Surprise",
		"Pre Return", "Post Return", "Excluded", "Exclusion Reason",
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write events header: %w", err)
	}

	for i, d := range result.EventDetails {
		row := []interface{}{
			d.EventID,
			d.EventTimestamp.Format("2006-01-02"),
			d.SurpriseValue,
			floatCell(d.PreWindowReturn),
			floatCell(d.PostWindowReturn),
			d.Excluded,
			d.ExclusionReason,
		}
		cell := "A" + strconv.Itoa(i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write event row %d: %w", i+2, err)
		}
	}
	return nil
}

func placeboVerdict(p domain.PlaceboResult) string {
	if !p.Available() {
		return "unavailable"
	}
	if *p.Passed {
		return fmt.Sprintf("passed (p=%.4f)", *p.PValue)
	}
	return fmt.Sprintf("failed (p=%.4f)", *p.PValue)
}

func floatCell(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
