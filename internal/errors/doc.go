// Package errors provides coded, operator-facing errors for the portal
// binary: configuration problems, unusable storage, unreachable
// dependencies and CLI failures.
//
// Each code (e.g., "P100") maps to a category, a short message and a
// hint on how to fix it.
//
// # Usage
//
//	return errors.New("P102").
//	    WithDetail(`storage.backend is "ftp"`)
//
//	errors.PrintError(os.Stderr, err)
//	// Output:
//	// ERROR P102: Unknown storage backend
//	//
//	//   storage.backend is "ftp"
//	//
//	//   Hint: Set storage.backend to "disk" or "s3"
package errors
