package mem

import "github.com/pkg/errors"

// Perm is a set of access permissions.
type Perm uint8

const (
	Read Perm = 1 << iota
	Write
	Execute

	PermNone Perm = 0
	PermAll       = Read | Write | Execute
)

// Perms builds a permission set from individual flags.
func Perms(read, write, execute bool) Perm {
	var p Perm
	if read {
		p |= Read
	}
	if write {
		p |= Write
	}
	if execute {
		p |= Execute
	}
	return p
}

func (p Perm) Has(q Perm) bool { return p&q == q }

// String returns the permissions in ls -l style, as "r-x".
func (p Perm) String() string {
	buf := []byte("---")
	if p.Has(Read) {
		buf[0] = 'r'
	}
	if p.Has(Write) {
		buf[1] = 'w'
	}
	if p.Has(Execute) {
		buf[2] = 'x'
	}
	return string(buf)
}

// ParsePerm parses permissions written as by Perm.String. Letters can be in
// any order and dashes are ignored.
func ParsePerm(s string) (Perm, error) {
	var p Perm
	for _, c := range s {
		switch c {
		case 'r', 'R':
			p |= Read
		case 'w', 'W':
			p |= Write
		case 'x', 'X':
			p |= Execute
		case '-':
		default:
			return 0, errors.Errorf("invalid permission %q in %q", c, s)
		}
	}
	return p, nil
}
