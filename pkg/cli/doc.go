/*
Package cli provides command-line helpers used by the webdev command.

Output Formatting:

Results that implement Table can be printed as aligned text, CSV or JSON:

	formatter := cli.NewFormatter(cli.FormatCSV)
	if err := formatter.FormatTo(os.Stdout, records); err != nil {
		return err
	}

Build Progress:

ProgressReporter is attached to the build runner as an observer and prints
one line when a build starts and one when it ends, with the output tail of a
failed build.

Errors and Exit Codes:

Commands return ConfigError for configuration problems and CommandError for
everything else. ExitCode maps them, and build failures, to the process exit
status.

Signal Handling:

	ctx, cancel := cli.SetupSignalHandler(context.Background())
	defer cancel()

The first SIGINT or SIGTERM cancels ctx; a second one exits immediately.
*/
package cli
