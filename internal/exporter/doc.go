// Package exporter renders event-study results for download.
//
// StudyExporter produces a two-sheet XLSX workbook (regression summary plus
// per-event detail) and a flat CSV of the per-event rows. Both writers stream
// to an io.Writer so HTTP handlers can serve them without temp files.
package exporter
