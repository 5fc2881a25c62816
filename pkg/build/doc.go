// Package build runs the configured asset build command and coalesces
// concurrent requests for the same asset root into a single job.
//
// # Lifecycle
//
// A Job moves Idle → Running → Succeeded | Failed and never leaves a
// terminal state. Each job writes into its own fresh staging directory; the
// path is passed to the command through an environment variable (and
// optionally a trailing argument). On success the staging directory is kept
// for the publisher; on failure it is removed and the last lines of output
// are retained for diagnostics.
//
// # Coalescing
//
// Trigger returns the running job for a root if there is one. Any number of
// callers may Wait on the same job; cancelling a waiter's context never
// affects the job. Jobs stop early only on Runner.Shutdown or when the build
// timeout fires.
//
// # Example
//
//	runner, err := build.NewRunner(build.Config{
//	    Command:    "pnpm build",
//	    WorkingDir: "./web",
//	    Timeout:    5 * time.Minute,
//	})
//	if err != nil {
//	    return err
//	}
//	defer runner.Shutdown(context.Background())
//
//	res, err := runner.Trigger("./dist").Wait(ctx)
//	if errors.Is(err, build.ErrBuildFailed) {
//	    log.Printf("build failed:\n%s", strings.Join(res.Tail, "\n"))
//	}
package build
