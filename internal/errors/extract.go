package errors

import "fmt"

// UnsafeArchiveError reports a member path that would escape the
// destination directory, or an absolute/traversal path.
type UnsafeArchiveError struct {
	Base Error  `json:"error"`
	Path string `json:"path"`
}

// NewUnsafeArchiveError creates an UnsafeArchiveError.
func NewUnsafeArchiveError(path string) *UnsafeArchiveError {
	return &UnsafeArchiveError{
		Base: Error{
			Category: CategoryExtract,
			Code:     CodeUnsafeArchive,
			Message:  "archive member escapes destination directory",
		},
		Path: path,
	}
}

func (e *UnsafeArchiveError) Error() string     { return fmt.Sprintf("%s: %s", e.Base.Message, e.Path) }
func (e *UnsafeArchiveError) ErrorCode() Code   { return e.Base.Code }
func (e *UnsafeArchiveError) Is(target error) bool {
	_, ok := target.(*UnsafeArchiveError)
	return ok
}

// PrefixTooLongError reports that an install path is longer than the
// binary placeholder it must replace, which the `.conda` binary patch
// format cannot represent without truncation.
type PrefixTooLongError struct {
	Base             Error  `json:"error"`
	File             string `json:"file"`
	InstallLen       int    `json:"install_len"`
	PlaceholderLen   int    `json:"placeholder_len"`
}

// NewPrefixTooLongError creates a PrefixTooLongError.
func NewPrefixTooLongError(file string, installLen, placeholderLen int) *PrefixTooLongError {
	return &PrefixTooLongError{
		Base: Error{
			Category: CategoryExtract,
			Code:     CodePrefixTooLong,
			Message:  "install path too long to patch binary prefix",
			Hint:     "choose a shorter root directory for this install",
		},
		File:           file,
		InstallLen:     installLen,
		PlaceholderLen: placeholderLen,
	}
}

func (e *PrefixTooLongError) Error() string {
	return fmt.Sprintf("%s: %s (install=%d placeholder=%d)", e.Base.Message, e.File, e.InstallLen, e.PlaceholderLen)
}
func (e *PrefixTooLongError) ErrorCode() Code { return e.Base.Code }
func (e *PrefixTooLongError) Is(target error) bool {
	_, ok := target.(*PrefixTooLongError)
	return ok
}
