package main

import (
	"errors"

	pokserrors "github.com/poks-pm/poks/internal/errors"
)

// lastExitCode is set by a subcommand's RunE just before it returns an
// error, so main can exit with the strongest applicable code instead
// of a flat 1.
var lastExitCode = exitGeneric

// Exit codes, per §6.5.
const (
	exitSuccess  = 0
	exitGeneric  = 1
	exitUsage    = 2
	exitNotFound = 3
	exitChecksum = 4
	exitNetwork  = 5
)

// exitCodeFor maps a poks error to the strongest applicable exit
// code. Errors that don't satisfy pokserrors.Coded (flag parsing,
// generic I/O) fall back to the generic failure code.
func exitCodeFor(err error) int {
	if err == nil {
		return exitSuccess
	}

	var coded pokserrors.Coded
	if !errors.As(err, &coded) {
		return exitGeneric
	}

	switch coded.ErrorCode() {
	case pokserrors.CodeChecksumMismatch:
		return exitChecksum
	case pokserrors.CodeHTTPError, pokserrors.CodeBucketSyncError:
		return exitNetwork
	case pokserrors.CodeManifestNotFound, pokserrors.CodeVersionNotFound:
		return exitNotFound
	case pokserrors.CodeConfigInvalid:
		return exitUsage
	default:
		return exitGeneric
	}
}

// strongestExitCode picks the highest-priority exit code among a set
// of per-app failures, so a batch install's process exit reflects its
// worst failure per §7 ("sets the strongest exit code among per-app
// failures"). Priority, strongest first: checksum, network, not-found,
// usage, generic.
func strongestExitCode(codes []int) int {
	priority := []int{exitChecksum, exitNetwork, exitNotFound, exitUsage, exitGeneric}
	for _, want := range priority {
		for _, c := range codes {
			if c == want {
				return want
			}
		}
	}
	return exitSuccess
}
