// Package memcmd implements the addition of a memory block to a program, as
// a single operation that either fully succeeds or leaves the program
// untouched.
package memcmd

import (
	"github.com/pkg/errors"

	"memmap/addr"
	"memmap/log"
	"memmap/mem"
)

// Request describes the block to add.
type Request struct {
	Name       string
	Comment    string
	SourceName string

	Start    addr.Address
	Length   uint64
	Perms    mem.Perm
	Volatile bool
	Type     mem.Type

	// Fill is the value of every byte of initialized Default and Overlay
	// blocks.
	Fill        byte
	Initialized bool

	// OverlaySource is the first source address of BitMapped and ByteMapped
	// blocks. Overlay blocks require it to be an address of the overlaid
	// space, the start space. Their source is then the address at the
	// block start offset in that space.
	OverlaySource addr.Address
}

// FragmentTracker is notified of every new block, so that it shows up in
// the program listing.
type FragmentTracker interface {
	TrackBlock(name string, start, end addr.Address) error
}

// AddBlockOp adds a single block. It goes through the states Validating,
// Building, Inserting, FragmentTracking and ends in Committed or Failed. On
// failure, whatever was done by earlier states is undone.
//
// An AddBlockOp runs once and is not safe for concurrent use. Callers must
// ensure nobody else modifies the spaces, memory and tracker meanwhile,
// typically by running it inside a program transaction.
type AddBlockOp struct {
	req     Request
	spaces  *addr.Factory
	memory  *mem.Map
	tracker FragmentTracker

	state State
	block *mem.Block
	ovl   *addr.Space // staged overlay space

	inserted   bool
	registered bool
}

func NewAddBlockOp(req Request, spaces *addr.Factory, memory *mem.Map, tracker FragmentTracker) *AddBlockOp {
	return &AddBlockOp{
		req:     req,
		spaces:  spaces,
		memory:  memory,
		tracker: tracker,
	}
}

// State returns the current state of op.
func (op *AddBlockOp) State() State { return op.state }

// Run executes op and returns the inserted block. Errors are of type
// *OpError.
func (op *AddBlockOp) Run() (*mem.Block, error) {
	if op.state != Validating {
		return nil, op.fail(errors.Errorf("operation already ran (state %s)", op.state))
	}

	steps := []struct {
		next State
		f    func() error
	}{
		{Building, op.validate},
		{Inserting, op.build},
		{FragmentTracking, op.insert},
		{Committed, op.track},
	}
	for _, s := range steps {
		if err := s.f(); err != nil {
			return nil, op.fail(err)
		}
		op.state = s.next
	}

	log.ModCmd.DebugZ("block added").
		String("name", op.block.Name()).
		Stringer("type", op.block.Type()).
		Stringer("start", op.block.Start()).
		Stringer("end", op.block.End()).
		End()
	return op.block, nil
}

func (op *AddBlockOp) fail(err error) error {
	operr := &OpError{Name: op.req.Name, State: op.state, Err: err}
	op.undo()
	op.state = Failed

	log.ModCmd.DebugZ("add block failed").
		String("name", op.req.Name).
		Stringer("state", operr.State).
		Error("err", err).
		End()
	return operr
}

// undo reverts the insertion and the overlay space registration, in
// reverse order.
func (op *AddBlockOp) undo() {
	if op.registered {
		if err := op.spaces.Unregister(op.ovl); err != nil {
			log.ModCmd.ErrorZ("failed to unregister overlay space").
				Stringer("space", op.ovl).
				Error("err", err).
				End()
		}
		op.registered = false
	}
	if op.inserted {
		if err := op.memory.Remove(op.block); err != nil {
			log.ModCmd.ErrorZ("failed to remove block").
				Stringer("block", op.block).
				Error("err", err).
				End()
		}
		op.inserted = false
	}
	op.block = nil
}

func (op *AddBlockOp) validate() error {
	req := &op.req

	if req.Name == "" {
		return errors.Wrap(mem.ErrInvalidBlock, "block name must not be empty")
	}
	if req.Length == 0 {
		return errors.Wrap(mem.ErrInvalidBlock, "block length must be positive")
	}
	if !req.Start.IsValid() {
		return errors.Wrap(mem.ErrInvalidBlock, "invalid start address")
	}
	if !op.spaces.Has(req.Start.Space()) {
		return errors.Wrapf(addr.ErrUnknownSpace, "start address %s", req.Start)
	}
	end, err := req.Start.Add(req.Length - 1)
	if err != nil {
		return errors.Wrapf(err, "block end, length 0x%x from %s", req.Length, req.Start)
	}
	if op.memory.BlockByName(req.Name) != nil {
		return errors.Wrapf(mem.ErrDuplicateName, "%q", req.Name)
	}

	switch req.Type {
	case mem.Default:
		return nil
	case mem.BitMapped, mem.ByteMapped, mem.Overlay:
	default:
		return errors.Wrapf(mem.ErrInvalidBlock, "unknown block type %s", req.Type)
	}

	src := req.OverlaySource
	if !src.IsValid() {
		return errors.Wrapf(mem.ErrInvalidMapping, "%s block requires a source address", req.Type)
	}
	if !op.spaces.Has(src.Space()) {
		return errors.Wrapf(mem.ErrInvalidMapping, "source address %s: unknown space", src)
	}
	if req.Type == mem.Overlay {
		if req.Start.IsOverlay() {
			return errors.Wrapf(addr.ErrInvalidSpace, "cannot overlay overlay space %q", req.Start.Space().Name())
		}
		if !src.Space().Equal(req.Start.Space()) {
			return errors.Wrapf(mem.ErrInvalidMapping, "overlay source %s is not in overlaid space %q", src, req.Start.Space().Name())
		}
		return nil
	}

	srcEnd, err := src.Add(mem.SourceLength(req.Type, req.Length) - 1)
	if err != nil {
		return errors.Wrapf(err, "source range of %s", req.Name)
	}
	if src.Space().Equal(req.Start.Space()) &&
		src.Offset() <= end.Offset() && req.Start.Offset() <= srcEnd.Offset() {
		return errors.Wrapf(mem.ErrInvalidMapping, "source range [%s-%s] covers the block itself", src, srcEnd)
	}
	return nil
}

func (op *AddBlockOp) build() error {
	req := &op.req

	var (
		b   *mem.Block
		err error
	)
	switch req.Type {
	case mem.Default:
		if req.Initialized {
			b, err = mem.NewInitializedBlock(req.Name, req.Start, req.Length, req.Fill)
		} else {
			b, err = mem.NewUninitializedBlock(req.Name, req.Start, req.Length)
		}
	case mem.BitMapped:
		b, err = mem.NewBitMappedBlock(req.Name, req.Start, req.Length, req.OverlaySource)
	case mem.ByteMapped:
		b, err = mem.NewByteMappedBlock(req.Name, req.Start, req.Length, req.OverlaySource)
	case mem.Overlay:
		b, err = op.buildOverlay()
	}
	if err != nil {
		return err
	}

	b.SetComment(req.Comment)
	b.SetSourceName(req.SourceName)
	b.SetPermissions(req.Perms)
	b.SetVolatile(req.Volatile)
	op.block = b
	return nil
}

// buildOverlay stages a new overlay space of the start address space, and
// creates the block at the same offset in it.
func (op *AddBlockOp) buildOverlay() (*mem.Block, error) {
	req := &op.req

	ovl, err := op.spaces.NewOverlaySpace(req.Name, req.Start.Space())
	if err != nil {
		return nil, err
	}
	start, err := ovl.Address(req.Start.Offset())
	if err != nil {
		return nil, err
	}
	b, err := mem.NewOverlayBlock(req.Name, start, req.Length, req.Fill, req.Initialized)
	if err != nil {
		return nil, err
	}
	op.ovl = ovl
	return b, nil
}

func (op *AddBlockOp) insert() error {
	if err := op.memory.Insert(op.block); err != nil {
		return err
	}
	op.inserted = true

	if op.ovl != nil {
		if err := op.spaces.Register(op.ovl); err != nil {
			return err
		}
		op.registered = true
	}
	return nil
}

func (op *AddBlockOp) track() error {
	if op.tracker == nil {
		return nil
	}
	return op.tracker.TrackBlock(op.block.Name(), op.block.Start(), op.block.End())
}
