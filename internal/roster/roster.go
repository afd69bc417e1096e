// Package roster holds the fixed contact roster and the ad-hoc recipient
// list that feed the dispatch core.
package roster

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultSize is the number of roster slots: 24 mechanics and 5 technicians.
const DefaultSize = 29

// ErrIndexOutOfRange is returned for a slot index outside the roster.
var (
	ErrIndexOutOfRange = errors.New("roster: index out of range")
	ErrTooManyEntries  = errors.New("roster: too many entries")
)

// Person is a named contact with an unvalidated mail address.
type Person struct {
	Name string `yaml:"name"`
	Mail string `yaml:"mail"`
}

// Group is a half-open range of roster slots shown together.
type Group struct {
	Name  string
	Start int
	End   int
}

var (
	Mechanics   = Group{Name: "mechanics", Start: 0, End: 24}
	Technicians = Group{Name: "technicians", Start: 24, End: 29}
)

// Roster is a fixed-size indexed list of optional contacts.
type Roster struct {
	People []*Person `yaml:"people"`
}

// New returns an empty roster with size slots.
func New(size int) *Roster {
	return &Roster{People: make([]*Person, size)}
}

// Load reads a roster from a YAML file. A file with fewer entries than
// DefaultSize is padded with empty slots; empty slots past DefaultSize are
// dropped and a filled one is an error.
func Load(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster file: %w", err)
	}

	r := &Roster{}
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("failed to parse roster file: %w", err)
	}

	if len(r.People) > DefaultSize {
		for i, p := range r.People[DefaultSize:] {
			if p != nil {
				return nil, fmt.Errorf("%w: entry %d, roster holds %d", ErrTooManyEntries, DefaultSize+i, DefaultSize)
			}
		}
		r.People = r.People[:DefaultSize]
	}
	for len(r.People) < DefaultSize {
		r.People = append(r.People, nil)
	}
	return r, nil
}

// Save drops incomplete entries (empty name or mail) and writes the roster
// to path.
func (r *Roster) Save(path string) error {
	r.prune()

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode roster: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write roster file: %w", err)
	}
	return nil
}

// Size returns the number of slots.
func (r *Roster) Size() int {
	return len(r.People)
}

// Person returns the contact at index i, if the slot is filled.
func (r *Roster) Person(i int) (Person, bool) {
	if i < 0 || i >= len(r.People) || r.People[i] == nil {
		return Person{}, false
	}
	return *r.People[i], true
}

// SetName updates the name at slot i, creating the entry if needed.
func (r *Roster) SetName(i int, name string) error {
	p, err := r.slot(i)
	if err != nil {
		return err
	}
	p.Name = name
	return nil
}

// SetMail updates the mail address at slot i, creating the entry if needed.
func (r *Roster) SetMail(i int, mail string) error {
	p, err := r.slot(i)
	if err != nil {
		return err
	}
	p.Mail = mail
	return nil
}

// Entry is a filled roster slot together with its index.
type Entry struct {
	Index int
	Person
}

// Entries returns the filled slots within g, clamped to the roster size.
func (r *Roster) Entries(g Group) []Entry {
	var out []Entry
	for i := max(g.Start, 0); i < g.End && i < len(r.People); i++ {
		if p := r.People[i]; p != nil {
			out = append(out, Entry{Index: i, Person: *p})
		}
	}
	return out
}

func (r *Roster) slot(i int) (*Person, error) {
	if i < 0 || i >= len(r.People) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	if r.People[i] == nil {
		r.People[i] = &Person{}
	}
	return r.People[i], nil
}

func (r *Roster) prune() {
	for i, p := range r.People {
		if p != nil && (p.Name == "" || p.Mail == "") {
			r.People[i] = nil
		}
	}
}
