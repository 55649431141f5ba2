//nolint:revive // Package name intentionally shadows stdlib errors for convenience.
package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name: "without cause",
			err: &Error{
				Category: CategoryManifest,
				Code:     CodeManifestInvalid,
				Message:  "manifest is missing required field",
			},
			expected: "manifest is missing required field",
		},
		{
			name: "with cause",
			err: &Error{
				Category: CategoryConfig,
				Code:     CodeConfigInvalid,
				Message:  "failed to parse poks.json",
				Cause:    errors.New("unexpected EOF"),
			},
			expected: "failed to parse poks.json: unexpected EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("underlying error")
	err := &Error{Category: CategoryIO, Code: CodeIOError, Message: "write failed", Cause: cause}

	assert.Equal(t, cause, err.Unwrap())
}

func TestError_WithMethods(t *testing.T) {
	t.Parallel()

	err := New(CategoryConfig, CodeConfigInvalid, "test error")
	_ = err.WithHint("check poks.json syntax").WithDetail("line", 12)

	assert.Equal(t, "check poks.json syntax", err.Hint)
	assert.Equal(t, 12, err.Details["line"])
}

func TestError_Is(t *testing.T) {
	t.Parallel()

	t.Run("same code matches", func(t *testing.T) {
		t.Parallel()

		err1 := New(CategoryManifest, CodeManifestInvalid, "first")
		err2 := New(CategoryManifest, CodeManifestInvalid, "second")

		assert.ErrorIs(t, err1, err2)
	})

	t.Run("different code does not match", func(t *testing.T) {
		t.Parallel()

		err1 := New(CategoryManifest, CodeManifestInvalid, "bad manifest")
		err2 := New(CategoryResolve, CodeVersionNotFound, "no such version")

		assert.NotErrorIs(t, err1, err2)
	})
}

func TestError_ErrorCode(t *testing.T) {
	t.Parallel()

	var coded Coded = New(CategoryManifest, CodeManifestInvalid, "bad manifest")
	assert.Equal(t, CodeManifestInvalid, coded.ErrorCode())
}

func TestHTTPError(t *testing.T) {
	t.Parallel()

	err := NewHTTPError("https://example.com/tool.tar.gz", 404)

	assert.Equal(t, CodeHTTPError, err.Base.Code)
	assert.Equal(t, CodeHTTPError, err.ErrorCode())
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "https://example.com/tool.tar.gz")

	other := NewHTTPError("https://example.com/other.tar.gz", 404)
	assert.ErrorIs(t, err, other)

	notFound := NewHTTPError("https://example.com/tool.tar.gz", 500)
	assert.NotErrorIs(t, err, notFound)
}

func TestInstallError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := NewInstallError("ripgrep", "14.1.0", CodeHTTPError, cause).WithURL("https://example.com/rg.tar.gz")

	assert.Equal(t, CodeHTTPError, err.Base.Code)
	assert.Equal(t, CodeHTTPError, err.ErrorCode())
	assert.Equal(t, "ripgrep", err.App)
	assert.Equal(t, "14.1.0", err.Version)
	assert.Equal(t, "https://example.com/rg.tar.gz", err.URL)
	assert.Equal(t, cause, err.Unwrap())
}

func TestChecksumMismatchError(t *testing.T) {
	t.Parallel()

	err := NewChecksumMismatchError("https://example.com/rg.tar.gz", "abc123", "def456")

	assert.Equal(t, CodeChecksumMismatch, err.Base.Code)
	assert.Equal(t, CodeChecksumMismatch, err.ErrorCode())
	assert.Equal(t, "abc123", err.Expected)
	assert.Equal(t, "def456", err.Actual)
	assert.NotEmpty(t, err.Base.Hint)
	assert.Contains(t, err.Error(), "abc123")
	assert.Contains(t, err.Error(), "def456")
}

func TestYankedVersionError(t *testing.T) {
	t.Parallel()

	err := NewYankedVersionError("ripgrep", "14.1.0", "contains a regression")

	assert.Equal(t, CodeYankedVersion, err.Base.Code)
	assert.Equal(t, CodeYankedVersion, err.ErrorCode())
	assert.Contains(t, err.Error(), "ripgrep@14.1.0")
	assert.Contains(t, err.Error(), "contains a regression")
}

func TestUnsafeArchiveError(t *testing.T) {
	t.Parallel()

	err := NewUnsafeArchiveError("../../etc/passwd")

	assert.Equal(t, CodeUnsafeArchive, err.Base.Code)
	assert.Equal(t, CodeUnsafeArchive, err.ErrorCode())
	assert.Contains(t, err.Error(), "../../etc/passwd")
}

func TestPrefixTooLongError(t *testing.T) {
	t.Parallel()

	err := NewPrefixTooLongError("bin/tool", 512, 256)

	assert.Equal(t, CodePrefixTooLong, err.Base.Code)
	assert.Equal(t, CodePrefixTooLong, err.ErrorCode())
	assert.Equal(t, 512, err.InstallLen)
	assert.Equal(t, 256, err.PlaceholderLen)
	assert.NotEmpty(t, err.Base.Hint)
}

func TestErrorsAs_Coded(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		code Code
	}{
		{"base Error", New(CategoryConfig, CodeConfigInvalid, "bad config"), CodeConfigInvalid},
		{"HTTPError", NewHTTPError("https://example.com", 503), CodeHTTPError},
		{"InstallError", NewInstallError("tool", "1.0.0", CodeManifestInvalid, nil), CodeManifestInvalid},
		{"ChecksumMismatchError", NewChecksumMismatchError("url", "a", "b"), CodeChecksumMismatch},
		{"YankedVersionError", NewYankedVersionError("tool", "1.0.0", "broken"), CodeYankedVersion},
		{"UnsafeArchiveError", NewUnsafeArchiveError("/etc/passwd"), CodeUnsafeArchive},
		{"PrefixTooLongError", NewPrefixTooLongError("bin/tool", 10, 5), CodePrefixTooLong},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var coded Coded
			require.ErrorAs(t, tc.err, &coded)
			assert.Equal(t, tc.code, coded.ErrorCode())
		})
	}
}

func TestErrorsAs_WrappedInstallError(t *testing.T) {
	t.Parallel()

	cause := NewHTTPError("https://example.com/rg.tar.gz", 500)
	wrapped := NewInstallError("ripgrep", "14.1.0", CodeHTTPError, cause)

	var httpErr *HTTPError
	require.ErrorAs(t, wrapped, &httpErr)
	assert.Equal(t, 500, httpErr.Status)

	var coded Coded
	require.ErrorAs(t, wrapped, &coded)
	assert.Equal(t, CodeHTTPError, coded.ErrorCode())
}
