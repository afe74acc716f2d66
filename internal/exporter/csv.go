package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"tremor/pkg/contracts/domain"
)

// WriteDetailsCSV writes the per-event rows of a study result as CSV. Excluded
// events keep their row so the exclusion reasons travel with the export.
func (e *StudyExporter) WriteDetailsCSV(w io.Writer, result *domain.EventStudyResult) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	headers := []string{
		"event_id", "timestamp", "surprise",
		"pre_window_return", "post_window_return", "excluded", "exclusion_reason",
	}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for i, d := range result.EventDetails {
		row := []string{
			d.EventID,
			d.EventTimestamp.Format("2006-01-02"),
			strconv.FormatFloat(d.SurpriseValue, 'f', -1, 64),
			floatField(d.PreWindowReturn),
			floatField(d.PostWindowReturn),
			strconv.FormatBool(d.Excluded),
			d.ExclusionReason,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return writer.Error()
}

func floatField(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
