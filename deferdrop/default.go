package deferdrop

import (
	"sync"

	"github.com/NetPo4ki/go-deferdrop/slot"
)

var (
	defaultBin slot.Slot[*Bin]

	defaultMu   sync.Mutex
	defaultOpts []Option
)

// Default returns the process-wide bin, starting its worker on first use.
// Racing first callers block until one of them has created it.
func Default() *Bin {
	return defaultBin.GetOrInit(func() *Bin {
		defaultMu.Lock()
		opts := append([]Option(nil), defaultOpts...)
		defaultMu.Unlock()
		return NewBin(opts...)
	})
}

// Configure sets the options used the next time the default bin is created.
// A running default bin is not affected until Shutdown.
func Configure(opts ...Option) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultOpts = append([]Option(nil), opts...)
}

// Shutdown closes the default bin, abandoning whatever it still has queued,
// and reports whether one was running. A later release creates a new one,
// including a release made by the disposal the old worker is finishing.
func Shutdown() bool {
	return defaultBin.Teardown(func(b *Bin) { _ = b.Close() })
}
