package kv

import (
	"fmt"
)

// Update describes a mutation of one item. Clauses are applied in field order.
type Update struct {
	// Set overwrites attributes
	Set map[string]any
	// SetIfAbsent writes attributes only where they are not already stored
	SetIfAbsent map[string]any
	// Remove deletes attributes
	Remove []string
	// Increment atomically adds a delta to numeric attributes, treating absence as 0
	Increment map[string]int64
	// AddToSet adds members to string-set attributes
	AddToSet map[string][]string
	// DeleteFromSet removes members from string-set attributes; an emptied set is removed
	DeleteFromSet map[string][]string
}

// IsEmpty reports whether the update carries no clause
func (u Update) IsEmpty() bool {
	return len(u.Set) == 0 && len(u.SetIfAbsent) == 0 && len(u.Remove) == 0 &&
		len(u.Increment) == 0 && len(u.AddToSet) == 0 && len(u.DeleteFromSet) == 0
}

// Validate rejects updates that touch the primary key or name an attribute in
// more than one clause
func (u Update) Validate() error {
	if u.IsEmpty() {
		return fmt.Errorf("kv: empty update")
	}
	seen := make(map[string]bool)
	mark := func(attr string) error {
		if attr == AttrPK || attr == AttrSK {
			return fmt.Errorf("kv: update must not modify %s", attr)
		}
		if seen[attr] {
			return fmt.Errorf("kv: attribute %s appears in more than one update clause", attr)
		}
		seen[attr] = true
		return nil
	}
	for a := range u.Set {
		if err := mark(a); err != nil {
			return err
		}
	}
	for a := range u.SetIfAbsent {
		if err := mark(a); err != nil {
			return err
		}
	}
	for _, a := range u.Remove {
		if err := mark(a); err != nil {
			return err
		}
	}
	for a := range u.Increment {
		if err := mark(a); err != nil {
			return err
		}
	}
	for a := range u.AddToSet {
		if err := mark(a); err != nil {
			return err
		}
	}
	for a := range u.DeleteFromSet {
		if err := mark(a); err != nil {
			return err
		}
	}
	return nil
}

// Apply returns a copy of item with the update applied. Engines that cannot
// express the update natively run it inside their own atomic section.
func (u Update) Apply(item Item) Item {
	out := item.Clone()
	if out == nil {
		out = Item{}
	}
	for a, v := range u.Set {
		out[a] = cloneValue(v)
	}
	for a, v := range u.SetIfAbsent {
		if _, ok := out[a]; !ok {
			out[a] = cloneValue(v)
		}
	}
	for _, a := range u.Remove {
		delete(out, a)
	}
	for a, d := range u.Increment {
		cur, _ := Int64(out[a])
		out[a] = cur + d
	}
	for a, members := range u.AddToSet {
		set := Strings(out[a])
		for _, m := range members {
			if !containsString(set, m) {
				set = append(set, m)
			}
		}
		out[a] = set
	}
	for a, members := range u.DeleteFromSet {
		set := Strings(out[a])
		kept := set[:0]
		for _, s := range set {
			if !containsString(members, s) {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(out, a)
		} else {
			out[a] = kept
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
