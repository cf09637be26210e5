// Package exitcode defines the process exit codes of mdtask.
package exitcode

const (
	// Success: the command did what was asked.
	Success = 0

	// UserError: bad arguments, a missing project, or a file that is not a
	// task file.
	UserError = 1

	// AuthError: credentials are missing, expired or revoked.
	AuthError = 2

	// BackendError: the remote API failed or some files did not sync.
	BackendError = 3
)
