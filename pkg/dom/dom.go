// Package dom defines the narrow contract through which the engine observes
// and mutates the host UI tree. The live implementation drives a Chrome
// instance over CDP (pkg/browser/cdp); tests use the in-memory implementation
// in pkg/dom/memdom. No structural stability is assumed between calls: node
// handles may go stale at any time, and callers re-query rather than cache.
package dom

import (
	"context"
	"errors"
)

// ErrBadExpression marks a query expression the underlying engine could not
// parse. The selector resolution layer skips such expressions instead of
// propagating the error.
var ErrBadExpression = errors.New("dom: invalid query expression")

// ErrStaleNode is returned when an operation targets a node that no longer
// exists in the host tree.
var ErrStaleNode = errors.New("dom: node no longer attached")

// Option is one entry of a select control or listbox.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// Node is a handle to a single element of the host UI tree.
//
// Read operations never mutate the tree. SetValue, SetChecked, SelectOption
// and Click are the only committed actions the engine performs; each
// implementation is responsible for firing whatever change/input notification
// the host UI needs to observe the mutation.
type Node interface {
	// Ref returns an identifier that is stable for the lifetime of this
	// handle and comparable across handles obtained in the same query pass.
	// It is used only for deduplication, never persisted.
	Ref() string

	// Tag returns the lower-cased element name ("input", "select", ...).
	Tag() string

	// Attr returns the value of an attribute, or "" when absent.
	Attr(name string) string

	// HasAttr reports whether the attribute is present, even when empty.
	HasAttr(name string) bool

	// Text returns the visible text content of the subtree rooted here.
	Text(ctx context.Context) (string, error)

	// Value returns the current value of a form control.
	Value(ctx context.Context) (string, error)

	// Visible reports whether the element occupies layout space and neither
	// it nor any ancestor suppresses display.
	Visible(ctx context.Context) (bool, error)

	// Checked reports the state of a checkbox or radio input.
	Checked(ctx context.Context) (bool, error)

	// Closest returns the nearest ancestor (including self) matching expr,
	// or nil when there is none.
	Closest(ctx context.Context, expr string) (Node, error)

	// SetValue types a value into a text-like control and notifies the host.
	SetValue(ctx context.Context, value string) error

	// SetChecked forces the state of a checkbox or radio input.
	SetChecked(ctx context.Context, checked bool) error

	// SelectOption commits the option whose value equals value.
	SelectOption(ctx context.Context, value string) error

	// Options lists the options of a select control in document order.
	Options(ctx context.Context) ([]Option, error)

	// Click dispatches a click on the element.
	Click(ctx context.Context) error
}

// Page is a queryable view of the whole host document.
type Page interface {
	// Query returns all nodes under scope matching expr in document order.
	// A nil scope means the document root. An unparsable expr yields
	// ErrBadExpression; a valid expr with no matches yields an empty slice.
	Query(ctx context.Context, expr string, scope Node) ([]Node, error)

	// FindByText returns nodes with the given tag whose visible text
	// contains text, compared case-insensitively.
	FindByText(ctx context.Context, tag, text string, scope Node) ([]Node, error)

	// ContentSize returns a cheap structural proxy for the current document
	// (total text length), used for step-change fingerprinting.
	ContentSize(ctx context.Context, scope Node) (int, error)
}
