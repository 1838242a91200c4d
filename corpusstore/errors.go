package corpusstore

import "github.com/korpling/graphannis-go/qerr"

// ExitCodeMissingDataDirectory is the process exit code a CLI collaborator
// should use when a requested corpus has no readable data directory.
const ExitCodeMissingDataDirectory = 3

// ExitCode maps err to the process exit code a CLI collaborator should
// report, or 0 if err is nil. Every other error kind is left to the
// collaborator's own convention; only the missing-data-directory case is
// part of the core contract.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if qerr.Of(err, qerr.KindNoSuchCorpus) {
		return ExitCodeMissingDataDirectory
	}
	return 1
}
