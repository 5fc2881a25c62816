// Package types defines the JSON error envelope written to clients when the
// proxy itself, rather than the upstream, produces the response.
//
// Every locally generated error has the same shape:
//
//	{
//	  "error": {
//	    "message": "Bad gateway. Is your dev server running?",
//	    "type": "bad_gateway",
//	    "code": "upstream_unreachable"
//	  }
//	}
//
// Messages never include filesystem paths, upstream addresses or build output.
// Those belong in the server log, keyed by request ID.
package types
