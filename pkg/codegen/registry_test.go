package codegen

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xplshn/layoutc/pkg/ir"
	"github.com/xplshn/layoutc/pkg/util"
)

func TestGetOrCreateMemoizes(t *testing.T) {
	r := NewRegistry()
	key := Key{Family: "f", Target: "uint8"}
	runs := 0
	synth := func() (*ir.Function, error) {
		runs++
		name, err := r.NewName("f")
		if err != nil {
			return nil, err
		}
		return &ir.Function{Name: name, Code: "fn " + name + "() {\n}\n"}, nil
	}

	first, err := r.GetOrCreate(key, synth)
	require.NoError(t, err)
	second, err := r.GetOrCreate(key, synth)
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, 1, runs)
	require.Equal(t, "f", first.Family)
	require.Equal(t, 1, r.Len())

	other, err := r.GetOrCreate(Key{Family: "f", Target: "uint16"}, synth)
	require.NoError(t, err)
	require.NotEqual(t, first.Name, other.Name)
}

func TestGetOrCreateFailureStoresNothing(t *testing.T) {
	r := NewRegistry()
	key := Key{Family: "f", Target: "x"}
	boom := errors.New("boom")
	_, err := r.GetOrCreate(key, func() (*ir.Function, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	_, ok := r.Lookup(key)
	require.False(t, ok)
	require.Zero(t, r.Len())

	fn, err := r.GetOrCreate(key, func() (*ir.Function, error) {
		name, err := r.NewName("f")
		return &ir.Function{Name: name}, err
	})
	require.NoError(t, err)
	got, ok := r.Lookup(key)
	require.True(t, ok)
	require.Same(t, fn, got)
}

func TestGetOrCreateDetectsCycles(t *testing.T) {
	r := NewRegistry()
	key := Key{Family: "memory_conversion", Target: "a", Source: "b"}
	var synth func() (*ir.Function, error)
	synth = func() (*ir.Function, error) {
		if _, err := r.GetOrCreate(key, synth); err != nil {
			return nil, err
		}
		return nil, errors.New("unreachable")
	}
	_, err := r.GetOrCreate(key, synth)
	require.True(t, util.IsTranspileFailed(err), "%v", err)
	require.ErrorContains(t, err, "cyclic")
	require.Zero(t, r.Len())
}

func TestGetOrCreateRejectsUnissuedNames(t *testing.T) {
	r := NewRegistry()
	_, err := r.GetOrCreate(Key{Family: "f"}, func() (*ir.Function, error) {
		return &ir.Function{Name: "handmade"}, nil
	})
	require.True(t, util.IsTranspileFailed(err))
}

func TestNewNameRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	name, err := r.NewName("f1")
	require.NoError(t, err)
	require.Equal(t, "f10", name)
	for i := 0; i < 9; i++ {
		_, err := r.NewName("g")
		require.NoError(t, err)
	}
	_, err = r.NewName("f")
	require.True(t, util.IsTranspileFailed(err))
	require.ErrorContains(t, err, "f10")
}

func TestRequireImportShares(t *testing.T) {
	r := NewRegistry()
	a := r.RequireImport(WarpMemoryTrait)
	b := r.RequireImport(WarpMemoryTrait)
	require.Same(t, a, b)
	require.Equal(t, "WarpMemoryTrait", a.Name)
	require.Equal(t, []string{"warplib", "memory"}, a.Path)
	require.Len(t, r.Imports(), 1)
}
