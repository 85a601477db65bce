// Package publish ships the height document and chart after each tick, to a
// git working tree (commit and optional push) and/or an S3 bucket.
package publish
