// Package dom is a small in-process document model for binding clients.
// The tree is parsed with golang.org/x/net/html and queried with XPath via
// htmlquery. Form control state (value, checked, focus) lives beside the tree,
// like a user agent keeps it apart from the markup attributes.
package dom

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

var ErrNoBody = errors.New("document has no body")

// Document is a parsed page plus the live control state of its elements.
// All reads and writes go through the document lock; event listeners always
// run without it.
type Document struct {
	mu       sync.Mutex
	root     *html.Node
	body     *html.Node
	elements map[*html.Node]*Element // identity map
	active   *Element

	listenersMu sync.Mutex
	listeners   map[EventType][]*listenerEntry
}

// Parse reads an HTML page into a Document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	body := htmlquery.FindOne(root, "//body")
	if body == nil {
		return nil, ErrNoBody
	}

	return &Document{
		root:      root,
		body:      body,
		elements:  make(map[*html.Node]*Element),
		listeners: make(map[EventType][]*listenerEntry),
	}, nil
}

// ParseString is Parse for an in-memory page.
func ParseString(page string) (*Document, error) {
	return Parse(strings.NewReader(page))
}

// QueryAttr returns every element whose attribute attr equals value exactly.
func (d *Document) QueryAttr(attr, value string) ([]*Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queryAttrLocked(attr, value)
}

// ElementsWithAttr returns every element carrying attr, whatever its value.
func (d *Document) ElementsWithAttr(attr string) ([]*Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queryLocked(fmt.Sprintf("//*[@%s]", attr))
}

// QuerySelector returns the first element matching an XPath expression.
func (d *Document) QuerySelector(xpath string) (*Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	node, err := htmlquery.Query(d.root, xpath)
	if err != nil {
		return nil, fmt.Errorf("invalid query %q: %w", xpath, err)
	}
	if node == nil {
		return nil, nil
	}
	return d.wrapLocked(node), nil
}

// ActiveElement returns the focused element, or nil.
func (d *Document) ActiveElement() *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Focus moves input focus to el.
func (d *Document) Focus(el *Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = el
}

// Blur clears input focus.
func (d *Document) Blur() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = nil
}

// Render serializes the current tree, including control state written back
// as value/checked attributes.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for node, el := range d.elements {
		if node.Data != "input" {
			continue
		}
		setAttr(node, "value", el.value)
		if el.checked {
			setAttr(node, "checked", "")
		} else {
			removeAttr(node, "checked")
		}
	}
	restore := detachVoidChildren(d.root)
	defer restore()
	return html.Render(w, d.root)
}

// voidElements cannot carry children in serialized HTML.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "keygen": true, "link": true,
	"meta": true, "param": true, "source": true, "track": true, "wbr": true,
}

// detachVoidChildren unhooks children that scripts attached to void elements,
// so the tree can be serialized, and returns a func that puts them back.
func detachVoidChildren(root *html.Node) func() {
	type detached struct {
		parent   *html.Node
		children []*html.Node
	}
	var saved []detached

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && voidElements[n.Data] && n.FirstChild != nil {
			d := detached{parent: n}
			for c := n.FirstChild; c != nil; {
				next := c.NextSibling
				n.RemoveChild(c)
				d.children = append(d.children, c)
				c = next
			}
			saved = append(saved, d)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return func() {
		for _, d := range saved {
			for _, c := range d.children {
				d.parent.AppendChild(c)
			}
		}
	}
}

// Batch runs fn with the document locked, so a group of updates is applied
// without interleaving with host events.
func (d *Document) Batch(fn func(tx *Tx) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(&Tx{doc: d})
}

// Tx is the locked view of a Document handed to Batch callbacks.
type Tx struct {
	doc *Document
}

// QueryAttr is Document.QueryAttr under the batch lock.
func (tx *Tx) QueryAttr(attr, value string) ([]*Element, error) {
	return tx.doc.queryAttrLocked(attr, value)
}

// Focused reports whether el has input focus.
func (tx *Tx) Focused(el *Element) bool {
	return tx.doc.active == el
}

// SetTextContent replaces the children of el with a single text node.
func (tx *Tx) SetTextContent(el *Element, text string) {
	el.setTextContentLocked(text)
}

// SetValue sets the control value of el.
func (tx *Tx) SetValue(el *Element, value string) {
	el.value = value
}

// SetChecked sets the checked state of el.
func (tx *Tx) SetChecked(el *Element, checked bool) {
	el.checked = checked
}

func (d *Document) queryAttrLocked(attr, value string) ([]*Element, error) {
	return d.queryLocked(fmt.Sprintf("//*[@%s=%s]", attr, xpathLiteral(value)))
}

func (d *Document) queryLocked(xpath string) ([]*Element, error) {
	nodes, err := htmlquery.QueryAll(d.root, xpath)
	if err != nil {
		return nil, fmt.Errorf("invalid query %q: %w", xpath, err)
	}
	elements := make([]*Element, 0, len(nodes))
	for _, node := range nodes {
		elements = append(elements, d.wrapLocked(node))
	}
	return elements, nil
}

func (d *Document) wrapLocked(node *html.Node) *Element {
	if el, ok := d.elements[node]; ok {
		return el
	}
	el := newElement(d, node)
	d.elements[node] = el
	return el
}

// attachedLocked reports whether el is still inside the body.
func (d *Document) attachedLocked(el *Element) bool {
	for n := el.node; n != nil; n = n.Parent {
		if n == d.body {
			return true
		}
	}
	return false
}

// xpathLiteral quotes s for use inside an XPath expression. XPath 1.0 has no
// escape sequences, so strings containing both quote kinds need concat().
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, part := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if part != "" {
			quoted = append(quoted, "'"+part+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ",") + ")"
}
