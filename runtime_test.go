package breakwater

// ============================================================================
// Runtime Handle Test File
// ============================================================================

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/breakwater/command"
	"github.com/ChuLiYu/breakwater/pkg/types"
)

func TestRuntimeShutdownDrainsBus(t *testing.T) {
	command.ClearAll()
	t.Cleanup(command.ClearAll)

	rt := New()

	delivered := make(chan string, 64)
	rt.Sink(func(event types.Event) error {
		delivered <- event.Name()
		return nil
	})

	echo := command.MustRegister(command.Command[int, int]{
		Name: "Echo",
		Run: func(ctx context.Context, v int) (int, error) {
			return v, nil
		},
	})
	v, err := echo.New(9).Result(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, v)

	rt.Shutdown(true)
	assert.NotPanics(t, func() { rt.Shutdown(true) }, "Shutdown is idempotent")

	names := map[string]int{}
	for {
		select {
		case name := <-delivered:
			names[name]++
			continue
		default:
		}
		break
	}
	assert.GreaterOrEqual(t, names["task.submitted"], 1,
		"lifecycle events reach sinks before Shutdown returns")
	assert.GreaterOrEqual(t, names["task.completed"], 1)
}
