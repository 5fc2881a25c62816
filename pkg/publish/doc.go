// Package publish moves finished build output into the serving path.
//
// A publish never writes into the live tree. The staging directory is first
// renamed (or, across filesystems, copied) to a hidden sibling of the
// serving path, then exchanged with the serving path in a single rename
// system call. Requests see either the old tree or the new one, never a mix.
//
// Readers pin a generation with Open, which returns an *os.Root handle and a
// lease. The tree a publish replaces is deleted once its last lease is
// released, so only the current tree is kept.
//
//	pub, err := publish.New("./dist")
//	if err != nil {
//	    return err
//	}
//	if err := pub.Publish(result.StagingDir); err != nil {
//	    var swapErr *publish.SwapError
//	    errors.As(err, &swapErr) // previous tree still served
//	}
package publish
