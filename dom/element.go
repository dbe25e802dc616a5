package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Element wraps an element node. The same node always yields the same
// *Element, so pointer comparison is identity.
type Element struct {
	doc  *Document
	node *html.Node

	value   string
	checked bool
}

func newElement(doc *Document, node *html.Node) *Element {
	el := &Element{doc: doc, node: node}
	switch node.Data {
	case "input":
		el.value, _ = attr(node, "value")
		_, el.checked = attr(node, "checked")
	case "textarea":
		el.value = textContent(node)
	}
	return el
}

// TagName returns the upper-case tag name, e.g. "INPUT".
func (e *Element) TagName() string {
	return strings.ToUpper(e.node.Data)
}

// Type returns the lower-case type attribute of an input ("text" when absent).
func (e *Element) Type() string {
	if e.node.Data != "input" {
		return ""
	}
	e.doc.mu.Lock()
	t, ok := attr(e.node, "type")
	e.doc.mu.Unlock()
	if !ok || t == "" {
		return "text"
	}
	return strings.ToLower(t)
}

// Attr returns an attribute value and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return attr(e.node, name)
}

// TextContent returns the concatenated text of the element's descendants.
func (e *Element) TextContent() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return textContent(e.node)
}

// SetTextContent replaces all children with a single text node.
func (e *Element) SetTextContent(text string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.setTextContentLocked(text)
}

// Value returns the control's current value (not the value attribute).
func (e *Element) Value() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.value
}

// SetValue sets the control value without firing events.
func (e *Element) SetValue(value string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.value = value
}

// Checked reports the checkbox state (not the checked attribute).
func (e *Element) Checked() bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.checked
}

// SetChecked sets the checkbox state without firing events.
func (e *Element) SetChecked(checked bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.checked = checked
}

// Focused reports whether the element holds input focus.
func (e *Element) Focused() bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.doc.active == e
}

func (e *Element) setTextContentLocked(text string) {
	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.node.RemoveChild(c)
		c = next
	}
	if text != "" {
		e.node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	if e.node.Data == "textarea" {
		e.value = text
	}
}

func attr(node *html.Node, name string) (string, bool) {
	for _, a := range node.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(node *html.Node, name, value string) {
	for i, a := range node.Attr {
		if a.Namespace == "" && a.Key == name {
			node.Attr[i].Val = value
			return
		}
	}
	node.Attr = append(node.Attr, html.Attribute{Key: name, Val: value})
}

func removeAttr(node *html.Node, name string) {
	kept := node.Attr[:0]
	for _, a := range node.Attr {
		if a.Namespace == "" && a.Key == name {
			continue
		}
		kept = append(kept, a)
	}
	node.Attr = kept
}

func textContent(node *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return sb.String()
}
