// Package fix streams a whole dump through one codec parameter set,
// correcting every sector it can and writing the repaired image.
package fix

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/OpenTraceLab/OpenTraceNAND/pkg/codec"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/dump"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/nand"
)

// ErrMisalignedFile is returned when the dump does not hold a whole number
// of raw pages after the offset.
var ErrMisalignedFile = nand.ErrMisalignedFile

// State is the lifecycle of one Fixer.
type State int32

const (
	StateIdle State = iota
	StateStreaming
	StateCompleted
	StateCancelled
	StateFatal
)

var stateNames = map[State]string{
	StateIdle:      "Idle",
	StateStreaming: "Streaming",
	StateCompleted: "Completed",
	StateCancelled: "Cancelled",
	StateFatal:     "Fatal",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", s)
}

// Options are the correction policies of a run.
type Options struct {
	Offset        int64 // Bytes before the first page, not copied to any output
	SkipErased    bool  // Count all-0xFF sectors as erased instead of decoding them
	RewriteECC    bool  // Replace stored ECC with the ECC of the corrected data
	DirectIO      bool  // Read the input with O_DIRECT where supported
	ProgressEvery int   // Pages between progress reports (default: 64)
	Logger        *slog.Logger
}

// DefaultOptions skips erased sectors and keeps stored ECC.
func DefaultOptions() Options {
	return Options{SkipErased: true, ProgressEvery: 64}
}

// Paths names the files of a run. Raw is optional.
type Paths struct {
	Input string
	Data  string
	Raw   string
}

// Progress is a periodic pipeline update.
type Progress struct {
	Page    int64
	Total   int64
	Percent float64
}

// Fixer runs the correction pipeline once.
type Fixer struct {
	state atomic.Int32
}

// New returns an idle Fixer.
func New() *Fixer { return &Fixer{} }

// State may be read from any goroutine.
func (f *Fixer) State() State { return State(f.state.Load()) }

func (f *Fixer) set(s State) { f.state.Store(int32(s)) }

// Run corrects the dump with a fresh Fixer.
func Run(ctx context.Context, h *codec.Handle, l nand.Layout, opts Options, paths Paths, progress chan<- Progress) (*Report, error) {
	return New().Run(ctx, h, l, opts, paths, progress)
}

// Run streams paths.Input page by page through h. Each step of a page is
// decoded with the sector and the handle's extra bytes as message. Corrected
// bytes are written back into the page; uncorrectable steps are left as
// read. The data area of every page goes to paths.Data and, when set, the
// whole corrected raw page to paths.Raw.
//
// Cancellation is checked between pages. A cancelled run returns ctx.Err()
// and leaves the partial outputs on disk.
func (f *Fixer) Run(ctx context.Context, h *codec.Handle, l nand.Layout, opts Options, paths Paths, progress chan<- Progress) (rep *Report, err error) {
	if f.State() != StateIdle {
		return nil, fmt.Errorf("fix: fixer is %s", f.State())
	}
	defer func() {
		switch {
		case err == nil:
			f.set(StateCompleted)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			f.set(StateCancelled)
		default:
			f.set(StateFatal)
		}
	}()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	every := int64(opts.ProgressEvery)
	if every <= 0 {
		every = 64
	}

	if err := l.Validate(); err != nil {
		return nil, err
	}
	p := h.Params()
	if err := p.CheckLayout(l); err != nil {
		return nil, fmt.Errorf("fix: %s with %s: %w", p, l, err)
	}
	if h.ECCBytes() != l.ECCLength {
		return nil, fmt.Errorf("fix: %w: handle uses %d bytes, layout %d", codec.ErrECCLengthMismatch, h.ECCBytes(), l.ECCLength)
	}

	in, err := dump.OpenStream(ctx, paths.Input, dump.StreamOptions{Offset: opts.Offset, Direct: opts.DirectIO, Logger: logger})
	if err != nil {
		return nil, err
	}
	defer in.Close()
	total, err := l.PageCount(in.Size(), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("fix: %s: %w", paths.Input, err)
	}

	data, err := dump.Create(paths.Data)
	if err != nil {
		return nil, err
	}
	defer data.Close()
	var raw *dump.Writer
	if paths.Raw != "" {
		if raw, err = dump.Create(paths.Raw); err != nil {
			return nil, err
		}
		defer raw.Close()
	}

	f.set(StateStreaming)
	rep = newReport(l, p, total)
	logger.Info("fix started", "run", rep.RunID, "input", paths.Input, "layout", l.String(), "params", p.String(),
		"pages", total, "direct", in.Direct())

	var scratch codec.Scratch
	page := make([]byte, l.RawPageSize())
	steps := l.StepCount()
	for pi := int64(0); pi < total; pi++ {
		select {
		case <-ctx.Done():
			logger.Warn("fix cancelled", "run", rep.RunID, "page", pi)
			return nil, ctx.Err()
		default:
		}

		if err := in.ReadPage(ctx, page); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				logger.Warn("input ended early", "page", pi, "pages", total)
				break
			}
			return nil, fmt.Errorf("fix: page %d: %w", pi, err)
		}

		changed := false
		for s := 0; s < steps; s++ {
			sector, chunk := l.Step(page, s)
			extra := l.Extra(chunk, p.ExtraBytes)
			ecc := l.ECC(chunk)
			if opts.SkipErased && nand.IsErased(sector) && nand.IsErased(extra) && nand.IsErased(ecc) {
				rep.ErasedSkipped++
				continue
			}

			rep.Checked++
			n, err := h.DecodeSector(&scratch, sector, extra, ecc, p.Transform)
			if err != nil {
				rep.Uncorrectable++
				rep.BadPages.Set(uint64(pi))
				logger.Debug("uncorrectable sector", "page", pi, "step", s)
				continue
			}
			rep.TotalBitflips += int64(n)
			if n > 0 {
				msg := scratch.Message()
				if !bytes.Equal(msg[:len(sector)], sector) || !bytes.Equal(msg[len(sector):], extra) {
					scratch.WriteBack(sector, extra)
					changed = true
				}
			}

			if opts.RewriteECC {
				fresh, err := h.EncodeSector(&scratch, sector, extra, l.ECCLength, p.Transform)
				if err != nil {
					return nil, fmt.Errorf("fix: page %d step %d: %w", pi, s, err)
				}
				if !bytes.Equal(fresh, ecc) {
					copy(ecc, fresh)
					changed = true
				}
			}
		}
		if changed {
			rep.PagesTouched++
		}

		if _, err := data.Write(page[:l.PageSize]); err != nil {
			return nil, fmt.Errorf("fix: write %s: %w", paths.Data, err)
		}
		if raw != nil {
			if _, err := raw.Write(page); err != nil {
				return nil, fmt.Errorf("fix: write %s: %w", paths.Raw, err)
			}
		}

		if pi%every == 0 {
			report(progress, Progress{Page: pi + 1, Total: total, Percent: 100 * float64(pi+1) / float64(total)})
		}
	}

	if err := data.Close(); err != nil {
		return nil, fmt.Errorf("fix: close %s: %w", paths.Data, err)
	}
	if raw != nil {
		if err := raw.Close(); err != nil {
			return nil, fmt.Errorf("fix: close %s: %w", paths.Raw, err)
		}
	}
	rep.Finished = time.Now().UTC()
	report(progress, Progress{Page: total, Total: total, Percent: 100})
	logger.Info("fix finished", "run", rep.RunID, "checked", rep.Checked, "uncorrectable", rep.Uncorrectable,
		"erased", rep.ErasedSkipped, "touched", rep.PagesTouched, "bitflips", rep.TotalBitflips)
	return rep, nil
}

func report(ch chan<- Progress, p Progress) {
	if ch == nil {
		return
	}
	select {
	case ch <- p:
	default:
	}
}
