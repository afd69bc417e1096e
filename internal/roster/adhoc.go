package roster

import (
	"fmt"

	"github.com/shineum/mailsender/internal/email"
)

// AdHocList is a growable list of free-form recipients. Removing an entry
// leaves a hole so indices handed out by Add stay valid.
type AdHocList struct {
	slots []*Person
}

// Add appends an empty entry and returns its index.
func (l *AdHocList) Add() int {
	l.slots = append(l.slots, &Person{})
	return len(l.slots) - 1
}

// Edit sets the address at index i. The address doubles as the display name.
func (l *AdHocList) Edit(i int, mail string) error {
	if i < 0 || i >= len(l.slots) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	l.slots[i] = &Person{Name: mail, Mail: mail}
	return nil
}

// Remove empties slot i.
func (l *AdHocList) Remove(i int) error {
	if i < 0 || i >= len(l.slots) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	l.slots[i] = nil
	return nil
}

// PruneEmpty empties every slot whose address is blank.
func (l *AdHocList) PruneEmpty() {
	for i, p := range l.slots {
		if p != nil && p.Mail == "" {
			l.slots[i] = nil
		}
	}
}

// Export returns the present entries in index order.
func (l *AdHocList) Export() []Person {
	var out []Person
	for _, p := range l.slots {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// IsValid reports whether every present entry has a parseable address.
func (l *AdHocList) IsValid() bool {
	for _, p := range l.slots {
		if p == nil {
			continue
		}
		if _, err := email.ParseAddress(p.Name, p.Mail); err != nil {
			return false
		}
	}
	return true
}

// Len returns the number of slots, including removed ones.
func (l *AdHocList) Len() int {
	return len(l.slots)
}

// IsEmpty reports whether no slot was ever added.
func (l *AdHocList) IsEmpty() bool {
	return len(l.slots) == 0
}

// Clear drops all slots.
func (l *AdHocList) Clear() {
	l.slots = nil
}
