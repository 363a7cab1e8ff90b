package program

import (
	"github.com/pkg/errors"

	"memmap/addr"
	"memmap/listing"
	"memmap/log"
	"memmap/mem"
)

var (
	ErrTransactionOpen = errors.New("a transaction is already open")
	ErrBadTransaction  = errors.New("no such open transaction")
)

type transaction struct {
	id    int
	label string

	spaces  *addr.Checkpoint
	memory  *mem.Checkpoint
	listing *listing.Checkpoint
}

// StartTransaction opens a transaction and returns its id. Only one
// transaction can be open at a time: callers must serialize their
// modifications.
func (p *Program) StartTransaction(label string) (int, error) {
	p.txmu.Lock()
	defer p.txmu.Unlock()

	if p.tx != nil {
		return 0, errors.Wrapf(ErrTransactionOpen, "%q", p.tx.label)
	}

	p.mu.Lock()
	memcp, err := p.memory.Checkpoint()
	if err != nil {
		p.mu.Unlock()
		return 0, errors.Wrapf(err, "starting transaction %q", label)
	}

	p.nextTx++
	p.tx = &transaction{
		id:      p.nextTx,
		label:   label,
		spaces:  p.spaces.Checkpoint(),
		memory:  memcp,
		listing: p.listing.Checkpoint(),
	}

	log.ModProgram.DebugZ("start transaction").
		String("program", p.name).
		String("label", label).
		Int("id", p.tx.id).
		End()
	return p.tx.id, nil
}

// EndTransaction closes the transaction id. If commit is false, every change
// made since the transaction started is reverted.
func (p *Program) EndTransaction(id int, commit bool) error {
	p.txmu.Lock()
	defer p.txmu.Unlock()

	tx := p.tx
	if tx == nil || tx.id != id {
		return errors.Wrapf(ErrBadTransaction, "id %d", id)
	}

	if commit {
		tx.memory.Release()
		tx.spaces.Release()
		tx.listing.Release()
	} else {
		tx.memory.Rollback()
		tx.spaces.Rollback()
		tx.listing.Rollback()
	}
	p.tx = nil
	p.mu.Unlock()

	log.ModProgram.DebugZ("end transaction").
		String("program", p.name).
		String("label", tx.label).
		Int("id", tx.id).
		Bool("commit", commit).
		End()
	return nil
}

// Command is a unit of modification applied to a program.
type Command interface {
	Name() string
	ApplyTo(p *Program) error
}

// Execute applies c inside its own transaction, committed only if c
// succeeds.
func (p *Program) Execute(c Command) error {
	return p.WithTransaction(c.Name(), func() error {
		return c.ApplyTo(p)
	})
}

// WithTransaction runs f inside a transaction labelled label. The
// transaction is committed if f returns nil, and rolled back otherwise.
func (p *Program) WithTransaction(label string, f func() error) error {
	id, err := p.StartTransaction(label)
	if err != nil {
		return err
	}

	commit := false
	defer func() {
		if err := p.EndTransaction(id, commit); err != nil {
			log.ModProgram.ErrorZ("failed to end transaction").
				String("label", label).
				Error("err", err).
				End()
		}
	}()

	if err := f(); err != nil {
		return err
	}
	commit = true
	return nil
}
