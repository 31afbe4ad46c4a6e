// Package shipment loads the daily per-center shipment volume table and
// exposes it as an immutable Dataset.
//
// The source file is a delimited table with a `date` column (YYYYMMDD), a
// `center_name` column and eleven item-volume columns whose names are taken
// from the header. The file is EUC-KR encoded; the encoding is always declared
// explicitly through LoadOptions.
//
// Loaded datasets are memoized by Cache, keyed by absolute path, modification
// time and size. A file that changes on disk is reloaded on the next lookup.
package shipment
