// Package exporter writes analytics tables as CSV or XLSX.
//
// Tables are built from the summary, ranking, diagnosis and anomaly results
// and can be written either to the reports directory or straight to an
// io.Writer for HTTP downloads. CSV output starts with a UTF-8 BOM so that
// spreadsheet applications detect the encoding of Korean center names.
//
// Example usage:
//
//	w := exporter.NewCSVWriter(paths, logger)
//	path, err := w.WriteTable("ranking.csv", exporter.RankingTable(ranking.Records))
//
//	err = exporter.WriteXLSX(rw, exporter.SummaryTable(summaries))
package exporter
