package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "sitepipe.yaml").
			Build()

		assert.Equal(t, CategoryConfig, err.Category())
		assert.Equal(t, SeverityFatal, err.Severity())
		assert.Equal(t, "invalid configuration", err.Message())

		file, ok := err.Context().GetString("file")
		require.True(t, ok)
		assert.Equal(t, "sitepipe.yaml", file)
	})

	t.Run("Wrapped cause is reachable", func(t *testing.T) {
		cause := errors.New("permission denied")
		err := FileSystemError("clean destination").WithCause(cause).Fatal().Build()

		assert.ErrorIs(t, err, cause)
		assert.True(t, err.IsFatal())
		assert.Contains(t, err.Error(), "[filesystem:fatal] clean destination: permission denied")
	})

	t.Run("Transform errors are not fatal", func(t *testing.T) {
		err := TransformError("compile stylesheet").Build()
		assert.False(t, err.IsFatal())
		assert.True(t, HasCategory(err, CategoryTransform))
	})
}

func TestClassificationThroughWrapping(t *testing.T) {
	inner := FileSystemError("remove dest").Fatal().Build()
	wrapped := fmt.Errorf("task clean: %w", inner)

	assert.True(t, IsClassified(wrapped))
	assert.True(t, IsFatal(wrapped))
	assert.Equal(t, CategoryFileSystem, GetCategory(wrapped))
	assert.Equal(t, CategoryInternal, GetCategory(errors.New("plain")))
	assert.False(t, IsFatal(errors.New("plain")))
}

func TestWithContextDoesNotMutateOriginal(t *testing.T) {
	base := BuildError("task failed").WithContext("task", "html").Build()
	extended := base.WithContext("file", "index.html")

	_, ok := base.Context().GetString("file")
	assert.False(t, ok)
	file, ok := extended.Context().GetString("file")
	assert.True(t, ok)
	assert.Equal(t, "index.html", file)
	assert.True(t, errors.Is(extended, base))
}
