package memcmd

import (
	"memmap/addr"
	"memmap/mem"
	"memmap/program"
)

// AddMemoryBlockCmd is the program command adding a memory block.
type AddMemoryBlockCmd struct {
	req    Request
	status string
	block  *mem.Block
}

func NewAddMemoryBlockCmd(req Request) *AddMemoryBlockCmd {
	return &AddMemoryBlockCmd{req: req}
}

func (c *AddMemoryBlockCmd) Name() string { return "Add Memory Block" }

// ApplyTo adds the block to p. It must run inside a transaction of p (see
// program.Program.Execute).
func (c *AddMemoryBlockCmd) ApplyTo(p *program.Program) error {
	op := NewAddBlockOp(c.req, p.AddressFactory(), p.Memory(), p.Listing())
	b, err := op.Run()
	if err != nil {
		c.status = err.Error()
		c.block = nil
		return err
	}
	c.status = ""
	c.block = b
	return nil
}

// StatusMsg returns the reason of the last failure, or an empty string.
func (c *AddMemoryBlockCmd) StatusMsg() string { return c.status }

// Block returns the block added by the last successful ApplyTo.
func (c *AddMemoryBlockCmd) Block() *mem.Block { return c.block }

// AddMemoryBlock adds a block to p in its own transaction. It reports
// whether the block was added, and if not, why.
//
// initialized only applies to Default and Overlay blocks. overlaySource is
// the source of mapped blocks, and must be valid for Overlay blocks.
func AddMemoryBlock(p *program.Program, name, comment, sourceName string,
	start addr.Address, length uint64, read, write, execute, volatile bool,
	fill byte, typ mem.Type, overlaySource addr.Address, initialized bool,
) (bool, string) {
	c := NewAddMemoryBlockCmd(Request{
		Name:          name,
		Comment:       comment,
		SourceName:    sourceName,
		Start:         start,
		Length:        length,
		Perms:         mem.Perms(read, write, execute),
		Volatile:      volatile,
		Type:          typ,
		Fill:          fill,
		Initialized:   initialized,
		OverlaySource: overlaySource,
	})
	if err := p.Execute(c); err != nil {
		if c.status == "" {
			c.status = err.Error()
		}
		return false, c.status
	}
	return true, c.status
}
