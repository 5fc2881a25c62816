package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for webdev spans.
const (
	AttrBuildJobID    = "webdev.build.job_id"
	AttrBuildRoot     = "webdev.build.root"
	AttrBuildState    = "webdev.build.state"
	AttrBuildExitCode = "webdev.build.exit_code"
	AttrGeneration    = "webdev.publish.generation"
)

// SetBuildAttributes tags span with the build job it waited on.
func SetBuildAttributes(span trace.Span, jobID, root string) {
	span.SetAttributes(
		attribute.String(AttrBuildJobID, jobID),
		attribute.String(AttrBuildRoot, root),
	)
}

// SetBuildResult records the terminal state of a build.
func SetBuildResult(span trace.Span, state string, exitCode int) {
	span.SetAttributes(
		attribute.String(AttrBuildState, state),
		attribute.Int(AttrBuildExitCode, exitCode),
	)
}

// SetGeneration records the asset generation a publish produced.
func SetGeneration(span trace.Span, generation uint64) {
	span.SetAttributes(attribute.Int64(AttrGeneration, int64(generation)))
}
