// Package errors carries small error utilities shared across the module.
package errors

import "errors"

// Collection accumulates errors from multiple operations so they can be
// reported together. Nil adds are ignored. Not safe for concurrent use.
type Collection struct {
	errs []error
}

// Add appends an error to the collection. Nil errors are dropped.
func (c *Collection) Add(err error) {
	if err != nil {
		c.errs = append(c.errs, err)
	}
}

// Len returns the number of collected errors.
func (c *Collection) Len() int {
	return len(c.errs)
}

// HasError returns true if at least one error was collected.
func (c *Collection) HasError() bool {
	return len(c.errs) > 0
}

// GetError returns nil for an empty collection, the sole error for a
// collection of one, or the errors joined.
func (c *Collection) GetError() error {
	switch len(c.errs) {
	case 0:
		return nil
	case 1:
		return c.errs[0]
	default:
		return errors.Join(c.errs...)
	}
}

// Clear resets the collection.
func (c *Collection) Clear() {
	c.errs = nil
}
