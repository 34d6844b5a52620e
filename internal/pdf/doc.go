// Package pdf extracts page text from PDF files.
//
// Extractor is the seam used by the processing pipeline; Reader implements it
// on top of github.com/ledongthuc/pdf. Document assembles the page texts into
// the single marked-up string that is chunked:
//
//	--- Page 1 ---
//	first page text
//
//	--- Page 3 ---
//	third page text
//
// Pages without text are skipped by Document but still returned by Extract so
// callers can log the real page count.
package pdf
