// Package options implements the buffer's small keyed configuration
// store: TMP_DIR, UNDO_LIMIT, UNDO_AFTER_SAVE, each a validated
// string-valued option.
package options

import (
	"strconv"

	"github.com/gaby/blessbuf/blerr"
)

// Key identifies a configuration option.
type Key string

const (
	TmpDir        Key = "TMP_DIR"
	UndoLimit     Key = "UNDO_LIMIT"
	UndoAfterSave Key = "UNDO_AFTER_SAVE"
)

const (
	// UndoAfterSaveAlways keeps undo/redo stacks across a successful save.
	UndoAfterSaveAlways = "always"
	// UndoAfterSaveNever clears both stacks after a successful save.
	UndoAfterSaveNever = "never"
	// UndoLimitInfinite disables the undo retention cap.
	UndoLimitInfinite = "infinite"
)

var defaults = map[Key]string{
	TmpDir:        "/tmp",
	UndoLimit:     UndoLimitInfinite,
	UndoAfterSave: UndoAfterSaveAlways,
}

// Store holds the current value of every known option, seeded with
// defaults.
type Store struct {
	values map[Key]string
}

// New returns a Store with every option at its default value.
func New() *Store {
	s := &Store{values: make(map[Key]string, len(defaults))}
	for k, v := range defaults {
		s.values[k] = v
	}
	return s
}

func validate(key Key, value string) error {
	switch key {
	case TmpDir:
		if value == "" {
			return blerr.New(blerr.EINVAL, "options: %s must not be empty", key)
		}
		return nil
	case UndoLimit:
		if value == UndoLimitInfinite {
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 0 {
			return blerr.New(blerr.EINVAL, "options: %s must be a non-negative integer or %q", key, UndoLimitInfinite)
		}
		return nil
	case UndoAfterSave:
		if value != UndoAfterSaveAlways && value != UndoAfterSaveNever {
			return blerr.New(blerr.EINVAL, "options: %s must be %q or %q", key, UndoAfterSaveAlways, UndoAfterSaveNever)
		}
		return nil
	default:
		return blerr.New(blerr.EINVAL, "options: unknown key %q", key)
	}
}

// Get returns the current value of key, or EINVAL if key is unknown.
func (s *Store) Get(key Key) (string, error) {
	v, ok := s.values[key]
	if !ok {
		return "", blerr.New(blerr.EINVAL, "options: unknown key %q", key)
	}
	return v, nil
}

// Set validates value for key and, if valid, stores it.
func (s *Store) Set(key Key, value string) error {
	if err := validate(key, value); err != nil {
		return err
	}
	s.values[key] = value
	return nil
}

// UndoLimitValue parses the current UNDO_LIMIT option into the form the
// action log expects: a non-negative cap, or action.Unlimited.
func (s *Store) UndoLimitValue() (int64, error) {
	v, err := s.Get(UndoLimit)
	if err != nil {
		return 0, err
	}
	if v == UndoLimitInfinite {
		return -1, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, blerr.New(blerr.EINVAL, "options: malformed %s value %q", UndoLimit, v)
	}
	return n, nil
}
