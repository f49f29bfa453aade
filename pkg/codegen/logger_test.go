package codegen

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xplshn/layoutc/pkg/types"
)

func TestSynthesisIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	ctx := NewContext(nil)
	fn, err := ctx.ImplicitConversionFunc(types.MustParse("uint16[]"), types.MustParse("uint8[2]"))
	require.NoError(t, err)
	prog := ctx.Program()

	synthesized := logs.FilterMessage("synthesized function")
	require.Equal(t, ctx.Registry().Len(), synthesized.Len())
	last := synthesized.All()[synthesized.Len()-1].ContextMap()
	require.Equal(t, fn.Name, last["name"])
	require.Equal(t, "memory_conversion", last["family"])

	emitted := logs.FilterMessage("emitting program").All()
	require.Len(t, emitted, 1)
	require.Equal(t, prog.Fingerprint(), emitted[0].ContextMap()["fingerprint"])
}
