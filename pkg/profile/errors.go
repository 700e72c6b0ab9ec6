package profile

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingKey is returned when a required field is absent from a
	// function list or function record.
	ErrMissingKey = errors.New("required key missing")

	// ErrNoEntrypoint is returned by Accumulate when no function matches
	// the fuzzer entrypoint of the profile's language.
	ErrNoEntrypoint = errors.New("fuzzer entrypoint function not found")

	// ErrAlreadyAccumulated is returned by a second call to Accumulate.
	ErrAlreadyAccumulated = errors.New("profile already accumulated")

	// ErrNotAccumulated is returned when a merge receives a profile whose
	// derived fields were never populated.
	ErrNotAccumulated = errors.New("profile not accumulated")

	// ErrNoProfiles is returned when merging an empty profile list.
	ErrNoProfiles = errors.New("no fuzzer profiles to merge")

	// ErrUnknownLanguage is returned by ParseLanguage.
	ErrUnknownLanguage = errors.New("unknown target language")
)

// DataLoadError reports a fuzzer artifact that could not be turned into a
// profile. The project-level merge drops such fuzzers.
type DataLoadError struct {
	Path string
	Err  error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *DataLoadError) Unwrap() error {
	return e.Err
}
