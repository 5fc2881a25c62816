// Package logging builds the process logger and carries request and build
// identifiers through contexts.
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "console",
//	})
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
// Records logged with a context pick up identifiers stored by WithRequestID
// and WithJobID:
//
//	ctx = logging.WithJobID(ctx, job.ID())
//	slog.InfoContext(ctx, "publishing")  // ... job_id=0f8c...
//
// # Formats
//
//   - json: one JSON object per line (default)
//   - text: logfmt-style key=value pairs
//   - console: colored level tags and a short timestamp for terminals
//
// # Redaction
//
// With Redact enabled, attributes whose keys look like credentials are
// replaced and string values are scrubbed of bearer tokens, URL userinfo
// and password assignments. RedactHeaders masks credential headers before
// a request's headers are logged.
package logging
