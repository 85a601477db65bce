// Package chart renders a height log as a PNG time series.
//
// Layout is pure: it splits samples into active segments, resolves axis
// ranges and tick labels, and builds the title lines. Drawing only consumes
// the resulting Plot, so layout rules are tested without decoding images.
package chart
