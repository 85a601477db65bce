// Package monitor runs the periodic tick.
//
// A tick always appends one sample to the height document: the live height
// when the fetch succeeds, a null sample otherwise. After persisting, the
// target crossing is evaluated against the document history and the chart
// and publishers run. Their failures are logged and reported in Result; only
// heightlog.ErrPersistence is returned as a tick error.
package monitor
