package diagnostics

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnosticCarriesAttribution(t *testing.T) {
	d := Error(CodeManifestMissing, "manifest file not found").
		WithPlugin("geo-tools").
		WithSource("/plugins/geo-tools/arion.plugin.json")

	assert.Equal(t, LevelError, d.Level)
	assert.Equal(t, CodeManifestMissing, d.Code)
	assert.Equal(t, "geo-tools", d.PluginID)
	assert.Equal(t, "/plugins/geo-tools/arion.plugin.json", d.SourcePath)
	assert.False(t, d.Timestamp.IsZero())
}

func TestRecorderPreservesAccumulationOrder(t *testing.T) {
	rec := NewRecorder(zerolog.Nop())

	rec.Add(Info(CodePluginActivated, "first"))
	rec.Add(Warning(CodePluginToolDuplicate, "second"))
	rec.Add(Error(CodePluginActivationFailed, "third"))

	items := rec.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "first", items[0].Message)
	assert.Equal(t, "second", items[1].Message)
	assert.Equal(t, "third", items[2].Message)
}

func TestRecorderItemsReturnsCopy(t *testing.T) {
	rec := NewRecorder(zerolog.Nop())
	rec.Add(Info(CodePluginActivated, "only"))

	items := rec.Items()
	items[0].Message = "mutated"

	assert.Equal(t, "only", rec.Items()[0].Message)
}

func TestRecorderIsSafeForConcurrentAdds(t *testing.T) {
	rec := NewRecorder(zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.Add(Error(CodePluginHookObserverError, "observer failed"))
		}()
	}
	wg.Wait()

	assert.Len(t, rec.Items(), 32)
}
