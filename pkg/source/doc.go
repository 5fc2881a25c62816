// Package source reads version-control metadata for the project being built.
//
// Build jobs are stamped with the revision of the working directory so that
// build history can be correlated with commits:
//
//	rev, err := source.Describe(".")
//	if errors.Is(err, source.ErrNotRepository) {
//	    // not under git; builds are recorded without a revision
//	}
//	fmt.Println(rev.Short())
package source
