// Package logx is dipwatch's structured logging on top of zerolog.
//
// Console output is short and human readable. The optional file sink writes
// JSON lines so tick history can be filtered with jq. Components take a
// Logger and tag it with With(logx.String("comp", ...)).
package logx
