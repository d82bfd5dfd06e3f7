package printer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		err := Error("Test Error", "This is a test error", []string{})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
	})

	t.Run("returns error with title when including suggestions", func(t *testing.T) {
		err := Error("Test Error", "Explanation", []string{"Try this fix"})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
	})

	t.Run("returns error with title for multiple suggestions", func(t *testing.T) {
		err := Error("Test Error", "Explanation", []string{
			"First option",
			"Second option",
		})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
	})
}

func TestEventDoesNotPanicOnUnknownTypes(t *testing.T) {
	// Rendering only; types outside the known set fall through to the
	// default color.
	Event(time.Now(), "file_shared", "shared spec.pdf")
	Event(time.Now(), "file_deleted", "deleted spec.pdf")
	Event(time.Now(), "something_new", "future event type")
}

// Note: The Error function prints formatted output to stderr with colors. The
// error object returned only contains the title for Cobra's error handling.
// This is intentional to avoid duplicate output while providing rich
// formatted errors.
