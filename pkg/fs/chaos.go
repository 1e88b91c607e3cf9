package fs

import (
	"errors"
	"io/fs"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
)

// ChaosConfig controls fault injection probabilities.
// Each rate is a float64 from 0.0 (never) to 1.0 (always).
//
// The zero value disables all fault injection. Rates of exactly 1.0 make a
// [Chaos] deterministic, which is what most table tests want.
type ChaosConfig struct {
	// OpenFailRate controls how often FS.Open and FS.Create fail.
	// Read opens return EACCES or EIO; Create adds ENOSPC and EROFS.
	OpenFailRate float64

	// ReadFailRate controls how often File.Read fails with EIO.
	ReadFailRate float64

	// WriteFailRate controls how often File.Write fails, writing zero bytes.
	WriteFailRate float64

	// PartialWriteRate controls how often File.Write writes a prefix of the
	// data and then fails. Models a crash or full disk mid-write.
	PartialWriteRate float64

	// SyncFailRate controls how often File.Sync fails.
	SyncFailRate float64

	// CloseFailRate controls how often File.Close reports an error. The
	// underlying descriptor is always closed.
	CloseFailRate float64

	// AtomicWriteFailRate controls how often FS.WriteFileAtomic fails.
	// The target file is left untouched.
	AtomicWriteFailRate float64
}

// ChaosMode controls how [Chaos] behaves.
type ChaosMode uint8

const (
	// ChaosModeActive enables fault-rate injection.
	// This is the default mode for a new [Chaos].
	ChaosModeActive ChaosMode = iota

	// ChaosModeNoOp passes every operation directly to the underlying FS.
	ChaosModeNoOp
)

// ChaosStats contains counts of injected faults.
type ChaosStats struct {
	OpenFails        int64
	ReadFails        int64
	WriteFails       int64
	PartialWrites    int64
	SyncFails        int64
	CloseFails       int64
	AtomicWriteFails int64
}

// chaosError marks an error as intentionally injected by [Chaos].
// It wraps the underlying error so errors.Is/As continue to work.
type chaosError struct {
	Err error
}

func (e *chaosError) Error() string {
	return "chaos: " + e.Err.Error()
}

func (e *chaosError) Unwrap() error {
	return e.Err
}

// IsChaosErr reports whether err (or any wrapped error) was injected by [Chaos].
func IsChaosErr(err error) bool {
	var injected *chaosError

	return errors.As(err, &injected)
}

// Chaos wraps an [FS] and injects failures for testing.
//
// Injected errors are [*fs.PathError] with a real [syscall.Errno], wrapped
// so [IsChaosErr] can tell them apart from real OS errors. Chaos never
// injects ENOENT; any os.IsNotExist result comes from the wrapped [FS].
type Chaos struct {
	fs     FS
	rng    *rand.Rand
	config ChaosConfig
	mode   atomic.Uint32

	rngMu sync.Mutex

	openFails        atomic.Int64
	readFails        atomic.Int64
	writeFails       atomic.Int64
	partialWrites    atomic.Int64
	syncFails        atomic.Int64
	closeFails       atomic.Int64
	atomicWriteFails atomic.Int64
}

// NewChaos creates a new [Chaos] filesystem wrapping the given [FS].
// The seed controls random fault injection for reproducibility.
// Panics if underlying is nil.
func NewChaos(underlying FS, seed int64, config *ChaosConfig) *Chaos {
	if underlying == nil {
		panic("underlying fs is nil")
	}

	return &Chaos{
		fs:     underlying,
		rng:    rand.New(rand.NewPCG(uint64(seed), uint64(seed))),
		config: *config,
	}
}

// SetMode updates [Chaos] behavior. Safe to call concurrently.
func (c *Chaos) SetMode(m ChaosMode) { c.mode.Store(uint32(m)) }

// Stats returns counts of injected faults so far.
func (c *Chaos) Stats() ChaosStats {
	return ChaosStats{
		OpenFails:        c.openFails.Load(),
		ReadFails:        c.readFails.Load(),
		WriteFails:       c.writeFails.Load(),
		PartialWrites:    c.partialWrites.Load(),
		SyncFails:        c.syncFails.Load(),
		CloseFails:       c.closeFails.Load(),
		AtomicWriteFails: c.atomicWriteFails.Load(),
	}
}

// TotalFaults returns the total number of injected faults.
func (c *Chaos) TotalFaults() int64 {
	s := c.Stats()

	return s.OpenFails + s.ReadFails + s.WriteFails + s.PartialWrites +
		s.SyncFails + s.CloseFails + s.AtomicWriteFails
}

func (c *Chaos) Open(path string) (File, error) {
	if c.should(c.config.OpenFailRate) {
		c.openFails.Add(1)

		return nil, pathError("open", path, c.pickRandom(syscall.EACCES, syscall.EIO))
	}

	f, err := c.fs.Open(path)
	if err != nil {
		return nil, err
	}

	return &chaosFile{f: f, chaos: c, path: path}, nil
}

func (c *Chaos) Create(path string) (File, error) {
	if c.should(c.config.OpenFailRate) {
		c.openFails.Add(1)

		return nil, pathError("open", path,
			c.pickRandom(syscall.EACCES, syscall.EIO, syscall.ENOSPC, syscall.EROFS))
	}

	f, err := c.fs.Create(path)
	if err != nil {
		return nil, err
	}

	return &chaosFile{f: f, chaos: c, path: path}, nil
}

func (c *Chaos) WriteFileAtomic(path string, data []byte) error {
	if c.should(c.config.AtomicWriteFailRate) {
		c.atomicWriteFails.Add(1)

		return pathError("write", path, c.pickRandom(syscall.EIO, syscall.ENOSPC, syscall.EROFS))
	}

	return c.fs.WriteFileAtomic(path, data)
}

// MkdirAll is not subject to fault injection.
func (c *Chaos) MkdirAll(path string, perm os.FileMode) error {
	return c.fs.MkdirAll(path, perm)
}

// Exists is not subject to fault injection.
func (c *Chaos) Exists(path string) (bool, error) {
	return c.fs.Exists(path)
}

func (c *Chaos) getMode() ChaosMode {
	v := c.mode.Load()
	if v > uint32(ChaosModeNoOp) {
		return ChaosModeActive
	}

	return ChaosMode(v)
}

func (c *Chaos) should(rate float64) bool {
	if c.getMode() != ChaosModeActive || rate <= 0 {
		return false
	}

	if rate >= 1 {
		return true
	}

	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	return c.rng.Float64() < rate
}

func (c *Chaos) randIntn(n int) int {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	return c.rng.IntN(n)
}

func (c *Chaos) pickRandom(errs ...syscall.Errno) syscall.Errno {
	return errs[c.randIntn(len(errs))]
}

func pathError(op, path string, errno syscall.Errno) error {
	return &chaosError{Err: &fs.PathError{Op: op, Path: path, Err: errno}}
}

// chaosFile wraps a [File] and injects faults on Read/Write/Sync/Close.
type chaosFile struct {
	f     File
	chaos *Chaos
	path  string
}

// Interface compliance.
var _ File = (*chaosFile)(nil)

func (cf *chaosFile) Read(buf []byte) (int, error) {
	if cf.chaos.should(cf.chaos.config.ReadFailRate) {
		cf.chaos.readFails.Add(1)

		return 0, pathError("read", cf.path, syscall.EIO)
	}

	return cf.f.Read(buf)
}

func (cf *chaosFile) Write(data []byte) (int, error) {
	if cf.chaos.should(cf.chaos.config.WriteFailRate) {
		cf.chaos.writeFails.Add(1)

		return 0, pathError("write", cf.path, cf.chaos.pickRandom(syscall.EIO, syscall.ENOSPC))
	}

	if cf.chaos.should(cf.chaos.config.PartialWriteRate) && len(data) > 1 {
		cf.chaos.partialWrites.Add(1)
		cutoff := cf.chaos.randIntn(len(data)-1) + 1 // [1, len(data)-1]

		wrote, err := cf.f.Write(data[:cutoff])
		if err != nil {
			return wrote, err
		}

		return wrote, pathError("write", cf.path, syscall.ENOSPC)
	}

	return cf.f.Write(data)
}

func (cf *chaosFile) Sync() error {
	if cf.chaos.should(cf.chaos.config.SyncFailRate) {
		cf.chaos.syncFails.Add(1)

		return pathError("sync", cf.path, cf.chaos.pickRandom(syscall.EIO, syscall.ENOSPC))
	}

	return cf.f.Sync()
}

func (cf *chaosFile) Close() error {
	inject := cf.chaos.should(cf.chaos.config.CloseFailRate)

	// Always close the underlying file to avoid descriptor leaks.
	err := cf.f.Close()
	if err != nil {
		return err
	}

	if inject {
		cf.chaos.closeFails.Add(1)

		return pathError("close", cf.path, syscall.EIO)
	}

	return nil
}

func (cf *chaosFile) Stat() (os.FileInfo, error) {
	return cf.f.Stat()
}

// Compile-time interface check.
var _ FS = (*Chaos)(nil)
