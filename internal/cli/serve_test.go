package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/star/satexplorer/internal/config"
	"github.com/star/satexplorer/internal/selection"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestNewPersisterEphemeral(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "satexplorer.db")
	p, closeStore, err := newPersister(config.StorageConfig{Path: path, Ephemeral: true}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer closeStore()

	_, isMemory := p.(*selection.MemoryPersister)
	assert.Equal(t, isMemory, true)
	if _, err := os.Stat(filepath.Dir(path)); !os.IsNotExist(err) {
		t.Errorf("ephemeral storage touched disk: stat err = %v", err)
	}
}

func TestNewPersisterSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "satexplorer.db")
	p, closeStore, err := newPersister(config.StorageConfig{Path: path}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	store := selection.NewStore(p, discardLogger())
	store.Add(25544)
	if err := closeStore(); err != nil {
		t.Fatal(err)
	}

	p, closeStore, err = newPersister(config.StorageConfig{Path: path}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer closeStore()
	assert.Equal(t, selection.NewStore(p, discardLogger()).Selected(), []int{25544})
}

type countingInvalidator struct{ n atomic.Int32 }

func (c *countingInvalidator) Invalidate() { c.n.Add(1) }

func TestInvalidateOnSignal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal)
	inv := &countingInvalidator{}

	done := make(chan struct{})
	go func() {
		invalidateOn(ctx, sig, inv, discardLogger())
		close(done)
	}()

	sig <- syscall.SIGHUP
	sig <- syscall.SIGHUP
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("invalidateOn did not return after cancel")
	}
	assert.Equal(t, inv.n.Load(), int32(2))
}
