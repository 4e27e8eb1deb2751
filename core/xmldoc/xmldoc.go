// Package xmldoc wraps xmlquery/xpath parsing and querying of workbook parts
// and adds the node construction and mutation helpers the DOM layer lacks.
//
// The decoders here never expand or fetch entities, so a crafted workbook
// part cannot trigger XXE-style lookups (CWE-611).
package xmldoc

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Parse parses XML data into an xmlquery DOM and returns the document node.
func Parse(data []byte) (*xmlquery.Node, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}
	return root, nil
}

// Query compiles the XPath expression, then returns the first matching node
// (nil when nothing matches).
func Query(doc *xmlquery.Node, expr string) (*xmlquery.Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("compile xpath: %w", err)
	}
	node, err := xmlquery.Query(doc, expr)
	if err != nil {
		return nil, fmt.Errorf("evaluate xpath: %w", err)
	}
	return node, nil
}

// QueryAll compiles the XPath expression, then returns all matching nodes.
func QueryAll(doc *xmlquery.Node, expr string) ([]*xmlquery.Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("compile xpath: %w", err)
	}
	nodes, err := xmlquery.QueryAll(doc, expr)
	if err != nil {
		return nil, fmt.Errorf("evaluate xpath: %w", err)
	}
	return nodes, nil
}

// Serialize converts a document back to XML bytes.
func Serialize(doc *xmlquery.Node) []byte {
	if doc == nil {
		return nil
	}
	return []byte(doc.OutputXML(true))
}

// CheckWellFormed verifies the data is well-formed XML without building a DOM.
// Entity expansion is disabled (CWE-611 defense).
func CheckWellFormed(data []byte) error {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Entity = map[string]string{}
	for {
		_, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("malformed XML: %w", err)
		}
	}
}

// NewElement creates a detached element node.
func NewElement(name string) *xmlquery.Node {
	return &xmlquery.Node{Type: xmlquery.ElementNode, Data: name}
}

// NewText creates a detached text node.
func NewText(text string) *xmlquery.Node {
	return &xmlquery.Node{Type: xmlquery.TextNode, Data: text}
}

// AppendChild attaches child as the last child of parent.
func AppendChild(parent, child *xmlquery.Node) {
	child.Parent = parent
	child.NextSibling = nil
	if parent.FirstChild == nil {
		parent.FirstChild = child
		child.PrevSibling = nil
	} else {
		parent.LastChild.NextSibling = child
		child.PrevSibling = parent.LastChild
	}
	parent.LastChild = child
}

// InsertBefore attaches child immediately before ref under parent. A nil ref
// appends at the end.
func InsertBefore(parent, child, ref *xmlquery.Node) {
	if ref == nil {
		AppendChild(parent, child)
		return
	}
	child.Parent = parent
	child.NextSibling = ref
	child.PrevSibling = ref.PrevSibling
	if ref.PrevSibling != nil {
		ref.PrevSibling.NextSibling = child
	} else {
		parent.FirstChild = child
	}
	ref.PrevSibling = child
}

// Detach removes a node from its parent. The node keeps its own children.
func Detach(n *xmlquery.Node) {
	if n.Parent == nil {
		return
	}
	if n.PrevSibling != nil {
		n.PrevSibling.NextSibling = n.NextSibling
	} else {
		n.Parent.FirstChild = n.NextSibling
	}
	if n.NextSibling != nil {
		n.NextSibling.PrevSibling = n.PrevSibling
	} else {
		n.Parent.LastChild = n.PrevSibling
	}
	n.Parent = nil
	n.PrevSibling = nil
	n.NextSibling = nil
}

// RemoveChildren drops all children of a node.
func RemoveChildren(n *xmlquery.Node) {
	n.FirstChild = nil
	n.LastChild = nil
}

// SetAttr sets or replaces an un-namespaced attribute.
func SetAttr(n *xmlquery.Node, name, value string) {
	for i := range n.Attr {
		if n.Attr[i].Name.Local == name && n.Attr[i].Name.Space == "" {
			n.Attr[i].Value = value
			return
		}
	}
	n.Attr = append(n.Attr, xmlquery.Attr{
		Name:  xml.Name{Local: name},
		Value: value,
	})
}

// Attr returns the value of an attribute by local name, or "". The prefix
// is ignored so namespaced attributes like r:id resolve too.
func Attr(n *xmlquery.Node, name string) string {
	for _, attr := range n.Attr {
		if attr.Name.Local == name {
			return attr.Value
		}
	}
	return ""
}

// Element returns the first child element with the given local name, or nil.
func Element(parent *xmlquery.Node, name string) *xmlquery.Node {
	for child := parent.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode && child.Data == name {
			return child
		}
	}
	return nil
}

// Elements returns all child elements with the given local name.
func Elements(parent *xmlquery.Node, name string) []*xmlquery.Node {
	var out []*xmlquery.Node
	for child := parent.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode && child.Data == name {
			out = append(out, child)
		}
	}
	return out
}

// ChildElements returns all child elements regardless of name.
func ChildElements(parent *xmlquery.Node) []*xmlquery.Node {
	var out []*xmlquery.Node
	for child := parent.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			out = append(out, child)
		}
	}
	return out
}

// RootElement returns the first element child of a document node, or nil.
func RootElement(doc *xmlquery.Node) *xmlquery.Node {
	for child := doc.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return child
		}
	}
	return nil
}
