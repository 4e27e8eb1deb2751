// Package encoding provides the text escaping used when writing XML
// fragments into workbook parts and HTML for the preview surface.
package encoding

import "strings"

// textEscaper covers the three characters that must never appear
// literally in XML character data. Quotes stay literal inside <t>
// elements.
var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

// attrEscaper additionally escapes double quotes, for values placed
// inside double-quoted attributes.
var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// EscapeXMLText escapes character data for an XML text element.
func EscapeXMLText(s string) string {
	return textEscaper.Replace(s)
}

// EscapeXMLAttr escapes a value for a double-quoted XML attribute.
func EscapeXMLAttr(s string) string {
	return attrEscaper.Replace(s)
}

// EscapeHTML escapes text for HTML element content and double-quoted
// attributes.
func EscapeHTML(s string) string {
	return attrEscaper.Replace(s)
}
