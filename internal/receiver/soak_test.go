//go:build soak

package receiver

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/serverconfig"
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/stats"
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/testutil"
)

const (
	soakDuration = time.Minute
	soakCycle    = 20 * time.Millisecond
)

// TestSoakPlayDisconnect plays and disconnects every slot repeatedly and checks
// that pollers, players and sessions are all released.
func TestSoakPlayDisconnect(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping soak test in short mode")
	}

	runtime.GC()
	time.Sleep(100 * time.Millisecond)
	baseline := runtime.NumGoroutine()
	var memBefore runtime.MemStats
	runtime.ReadMemStats(&memBefore)

	cfg := testConfig()
	cfg.Slots = 4
	cfg.StatsInterval = 5 * time.Millisecond
	h := newHarness(t, cfg, &serverconfig.ServerConfig{}, nil)
	ctx := context.Background()
	require.NoError(t, h.ctrl.Setup(ctx))

	cycles := 0
	deadline := time.Now().Add(soakDuration)
	for time.Now().Before(deadline) {
		for id := 1; id <= cfg.Slots; id++ {
			require.NoError(t, h.ctrl.Play(ctx, id))
		}
		h.mu.Lock()
		started := h.sessions[len(h.sessions)-cfg.Slots:]
		h.mu.Unlock()
		for _, s := range started {
			s.mu.Lock()
			s.report = stats.Report{"in": {ID: "in", Type: stats.TypeInboundRTP, Kind: "video", Timestamp: float64(cycles)}}
			s.mu.Unlock()
			s.handler.OnConnect("conn-1")
		}
		time.Sleep(soakCycle)
		for _, s := range started {
			s.handler.OnDisconnect("conn-1")
		}
		cycles++
	}
	t.Logf("completed %d cycles", cycles)

	runtime.GC()
	var memAfter runtime.MemStats
	runtime.ReadMemStats(&memAfter)
	t.Logf("heap: before=%dKB after=%dKB", memBefore.HeapAlloc/1024, memAfter.HeapAlloc/1024)

	testutil.AssertNoGoroutineLeaks(t, baseline, 5)
}
