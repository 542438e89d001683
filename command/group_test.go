package command

// ============================================================================
// Command Group Test File
// Purpose: Verify registration, name uniqueness, singleton groups and
// executor lookup
// ============================================================================

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/breakwater/pool"
)

// resetGroups gives each test a clean registry, like the runner does not
// normally need.
func resetGroups(t *testing.T) {
	ClearAll()
	t.Cleanup(ClearAll)
}

func echoSpec(name string) Command[int, int] {
	return Command[int, int]{
		Name: name,
		Run: func(ctx context.Context, v int) (int, error) {
			return v, nil
		},
	}
}

func TestRegisterRequiresRun(t *testing.T) {
	resetGroups(t)

	_, err := Register(Command[int, int]{Name: "NoRun"})
	assert.ErrorIs(t, err, ErrSetup)
	assert.ErrorIs(t, err, ErrCommand, "setup errors are command errors")
}

func TestRegisterRequiresName(t *testing.T) {
	resetGroups(t)

	_, err := Register(Command[int, int]{
		Run: func(ctx context.Context, v int) (int, error) { return v, nil },
	})
	assert.ErrorIs(t, err, ErrSetup)
}

func TestRegisterDefaultGroup(t *testing.T) {
	resetGroups(t)

	def := MustRegister(echoSpec("Echo"))
	assert.True(t, NewGroup("").Contains("Echo"))
	assert.Same(t, NewGroup("default"), def.GroupOf())
	assert.Equal(t, "default", def.PoolName())
}

func TestRegisterExplicitGroup(t *testing.T) {
	resetGroups(t)

	spec := echoSpec("Echo")
	spec.Group = "test"
	def := MustRegister(spec)

	assert.True(t, NewGroup("test").Contains("Echo"))
	assert.Same(t, NewGroup("test"), def.GroupOf())
	assert.False(t, NewGroup("default").Contains("Echo"))
}

func TestNamesUniquePerGroup(t *testing.T) {
	resetGroups(t)

	MustRegister(echoSpec("Echo"))
	_, err := Register(echoSpec("Echo"))
	assert.ErrorIs(t, err, ErrName)

	// The same name in another group is fine.
	other := echoSpec("Echo")
	other.Group = "test"
	_, err = Register(other)
	assert.NoError(t, err)
}

func TestGroupSingletonPerName(t *testing.T) {
	resetGroups(t)
	assert.Same(t, NewGroup("g"), NewGroup("g"))
	assert.NotSame(t, NewGroup("g"), NewGroup("h"))
}

func TestLookupAndGetCommand(t *testing.T) {
	resetGroups(t)

	def := MustRegister(echoSpec("Echo"))
	g := NewGroup("default")

	found, err := g.Lookup("Echo")
	require.NoError(t, err)
	assert.Equal(t, "Echo", found.CommandName())

	typed, err := GetCommand[int, int](g, "Echo")
	require.NoError(t, err)
	assert.Same(t, def, typed)

	_, err = g.Lookup("Other")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = GetCommand[string, string](g, "Echo")
	assert.ErrorIs(t, err, ErrType)
}

func TestDefaultExecutorAlwaysPresent(t *testing.T) {
	resetGroups(t)

	g := NewGroup("default")
	p, err := g.GetExecutor("default")
	require.NoError(t, err)
	assert.Equal(t, "default", p.Name())

	_, err = g.GetExecutor("undefined")
	assert.ErrorIs(t, err, ErrExecutorNotFound)
	assert.ErrorIs(t, err, ErrExecutor)
}

func TestAddExecutorFirstWins(t *testing.T) {
	resetGroups(t)

	g := NewGroup("default")
	first, err := g.GetExecutor("default")
	require.NoError(t, err)

	g.AddExecutor(pool.New("default"))
	again, err := g.GetExecutor("default")
	require.NoError(t, err)
	assert.Same(t, first, again, "adding an executor under an existing name has no effect")

	extra := pool.New("extra")
	g.AddExecutor(extra)
	got, err := g.GetExecutor("extra")
	require.NoError(t, err)
	assert.Same(t, extra, got)
}

func TestClearRemovesCommands(t *testing.T) {
	resetGroups(t)

	MustRegister(echoSpec("Echo"))
	g := NewGroup("default")
	require.True(t, g.Contains("Echo"))

	g.Clear()
	assert.False(t, g.Contains("Echo"))

	// The name is reusable after Clear.
	_, err := Register(echoSpec("Echo"))
	assert.NoError(t, err)
}

func TestListingAccessors(t *testing.T) {
	resetGroups(t)

	MustRegister(echoSpec("A"))
	MustRegister(echoSpec("B"))
	g := NewGroup("default")

	assert.ElementsMatch(t, []string{"A", "B"}, g.Commands())
	assert.Contains(t, g.Executors(), "default")
}
