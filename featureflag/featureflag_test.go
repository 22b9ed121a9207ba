package featureflag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeatureFlag(t *testing.T) {
	f := New([]string{string(FlagUseDataBounds), "", "SOMETHING_ELSE"})

	t.Run("run if enabled", func(t *testing.T) {
		var useDataBounds bool
		f.IfSet(FlagUseDataBounds, func() {
			useDataBounds = true
		})
		require.True(t, useDataBounds)

		var disableStream bool
		f.IfSet(FlagDisableStream, func() {
			disableStream = true
		})
		require.False(t, disableStream)
	})

	t.Run("run if disabled", func(t *testing.T) {
		var useDataBounds bool
		f.IfNotSet(FlagUseDataBounds, func() {
			useDataBounds = true
		})
		require.False(t, useDataBounds)

		var disableStream bool
		f.IfNotSet(FlagDisableStream, func() {
			disableStream = true
		})
		require.True(t, disableStream)
	})

	t.Run("unknown flags", func(t *testing.T) {
		require.Len(t, f, 2)
		require.Equal(t, []Flag{"SOMETHING_ELSE"}, f.Unknown())
	})
}
