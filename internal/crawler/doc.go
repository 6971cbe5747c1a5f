// Package crawler drives the nongnet wholesale price sheet to produce one
// spreadsheet export.
//
// A crawl is a fixed sequence: open the sheet, set the start and end dates,
// pick the item, apply each list filter in order, confirm the query, trigger
// the export and wait for the file to land in the download directory. Every
// wait is a bounded poll through package wait; the few steps that have no
// observable completion signal are followed by fixed settle delays.
//
// The first failing step aborts the crawl with a typed *errors.AppError
// (ELEMENT_NOT_FOUND, OPTION_NOT_FOUND, FILTER_NOT_CLICKABLE,
// CONFIRM_NOT_CLICKABLE or DOWNLOAD_TIMEOUT).
package crawler
