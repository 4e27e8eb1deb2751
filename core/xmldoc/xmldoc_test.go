package xmldoc

import (
	"strings"
	"testing"
)

const sampleSheet = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
<sheetData>
<row r="1"><c r="A1" t="s"><v>0</v></c><c r="B1"><v>42</v></c></row>
<row r="3"><c r="A3" t="s"><v>1</v></c></row>
</sheetData>
</worksheet>`

func TestParse(t *testing.T) {
	t.Run("valid document", func(t *testing.T) {
		doc, err := Parse([]byte(sampleSheet))
		if err != nil {
			t.Fatalf("Parse() unexpected error: %v", err)
		}
		root := RootElement(doc)
		if root == nil || root.Data != "worksheet" {
			t.Errorf("RootElement() = %v, want worksheet element", root)
		}
	})

	t.Run("malformed document", func(t *testing.T) {
		if _, err := Parse([]byte("<open><unclosed>")); err == nil {
			t.Error("Parse() expected error for malformed XML")
		}
	})
}

func TestQueryAll(t *testing.T) {
	doc, err := Parse([]byte(sampleSheet))
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}

	t.Run("namespaced elements match by local name", func(t *testing.T) {
		rows, err := QueryAll(doc, "//row")
		if err != nil {
			t.Fatalf("QueryAll() unexpected error: %v", err)
		}
		if len(rows) != 2 {
			t.Errorf("QueryAll(//row) = %d nodes, want 2", len(rows))
		}
	})

	t.Run("attribute predicate", func(t *testing.T) {
		cells, err := QueryAll(doc, `//c[@t="s"]`)
		if err != nil {
			t.Fatalf("QueryAll() unexpected error: %v", err)
		}
		if len(cells) != 2 {
			t.Errorf("QueryAll(//c[@t=\"s\"]) = %d nodes, want 2", len(cells))
		}
	})

	t.Run("invalid expression rejected at compile", func(t *testing.T) {
		_, err := QueryAll(doc, "//row[")
		if err == nil {
			t.Fatal("QueryAll() expected error for a bad xpath expression")
		}
		if !strings.Contains(err.Error(), "compile xpath") {
			t.Errorf("error = %v, want compile xpath", err)
		}
	})
}

func TestQuery(t *testing.T) {
	doc, err := Parse([]byte(sampleSheet))
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}

	cell, err := Query(doc, `//c[@r="B1"]/v`)
	if err != nil {
		t.Fatalf("Query() unexpected error: %v", err)
	}
	if cell == nil || cell.InnerText() != "42" {
		t.Errorf("Query(//c[@r=\"B1\"]/v) = %v, want node with text 42", cell)
	}

	missing, err := Query(doc, `//c[@r="Z99"]`)
	if err != nil {
		t.Fatalf("Query() unexpected error: %v", err)
	}
	if missing != nil {
		t.Errorf("Query() for absent cell = %v, want nil", missing)
	}
}

func TestCheckWellFormed(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantError bool
	}{
		{name: "well-formed", data: sampleSheet},
		{name: "unclosed tag", data: "<a><b></a>", wantError: true},
		{name: "bare text", data: "just text"},
		{name: "undefined entity rejected", data: "<a>&bogus;</a>", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckWellFormed([]byte(tt.data))
			if tt.wantError && err == nil {
				t.Error("CheckWellFormed() expected error, got nil")
			}
			if !tt.wantError && err != nil {
				t.Errorf("CheckWellFormed() unexpected error: %v", err)
			}
		})
	}
}

func TestMutationHelpers(t *testing.T) {
	t.Run("append child", func(t *testing.T) {
		parent := NewElement("sheetData")
		first := NewElement("row")
		second := NewElement("row")
		AppendChild(parent, first)
		AppendChild(parent, second)

		if parent.FirstChild != first || parent.LastChild != second {
			t.Error("AppendChild() did not link first/last child")
		}
		if first.NextSibling != second || second.PrevSibling != first {
			t.Error("AppendChild() did not link siblings")
		}
		if first.Parent != parent || second.Parent != parent {
			t.Error("AppendChild() did not set parent")
		}
	})

	t.Run("insert before", func(t *testing.T) {
		parent := NewElement("sheetData")
		row1 := NewElement("row")
		row3 := NewElement("row")
		SetAttr(row1, "r", "1")
		SetAttr(row3, "r", "3")
		AppendChild(parent, row1)
		AppendChild(parent, row3)

		row2 := NewElement("row")
		SetAttr(row2, "r", "2")
		InsertBefore(parent, row2, row3)

		var order []string
		for c := parent.FirstChild; c != nil; c = c.NextSibling {
			order = append(order, Attr(c, "r"))
		}
		want := []string{"1", "2", "3"}
		for i := range want {
			if order[i] != want[i] {
				t.Fatalf("row order = %v, want %v", order, want)
			}
		}
	})

	t.Run("insert before first child", func(t *testing.T) {
		parent := NewElement("sheetData")
		row2 := NewElement("row")
		AppendChild(parent, row2)

		row1 := NewElement("row")
		InsertBefore(parent, row1, row2)

		if parent.FirstChild != row1 {
			t.Error("InsertBefore() did not update FirstChild")
		}
		if row1.NextSibling != row2 || row2.PrevSibling != row1 {
			t.Error("InsertBefore() did not link siblings")
		}
	})

	t.Run("insert before nil appends", func(t *testing.T) {
		parent := NewElement("sheetData")
		row := NewElement("row")
		InsertBefore(parent, row, nil)
		if parent.LastChild != row {
			t.Error("InsertBefore(nil) should append")
		}
	})

	t.Run("detach middle node", func(t *testing.T) {
		parent := NewElement("sst")
		a := NewElement("si")
		b := NewElement("si")
		c := NewElement("si")
		AppendChild(parent, a)
		AppendChild(parent, b)
		AppendChild(parent, c)

		Detach(b)

		if a.NextSibling != c || c.PrevSibling != a {
			t.Error("Detach() did not relink siblings")
		}
		if b.Parent != nil || b.NextSibling != nil || b.PrevSibling != nil {
			t.Error("Detach() did not clear node links")
		}
	})

	t.Run("detach only child", func(t *testing.T) {
		parent := NewElement("sst")
		only := NewElement("si")
		AppendChild(parent, only)

		Detach(only)

		if parent.FirstChild != nil || parent.LastChild != nil {
			t.Error("Detach() did not clear parent links")
		}
	})

	t.Run("remove children", func(t *testing.T) {
		parent := NewElement("si")
		AppendChild(parent, NewText("old"))
		RemoveChildren(parent)
		if parent.FirstChild != nil || parent.LastChild != nil {
			t.Error("RemoveChildren() left children attached")
		}
	})

	t.Run("set attr replaces existing", func(t *testing.T) {
		n := NewElement("c")
		SetAttr(n, "r", "A1")
		SetAttr(n, "t", "s")
		SetAttr(n, "r", "B2")

		if got := Attr(n, "r"); got != "B2" {
			t.Errorf("Attr(r) = %q, want %q", got, "B2")
		}
		if len(n.Attr) != 2 {
			t.Errorf("attribute count = %d, want 2", len(n.Attr))
		}
	})
}

func TestMutatedTreeSerializes(t *testing.T) {
	doc, err := Parse([]byte(`<?xml version="1.0"?><sheetData><row r="1"/></sheetData>`))
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}

	sheetData := RootElement(doc)
	row := NewElement("row")
	SetAttr(row, "r", "2")
	cell := NewElement("c")
	SetAttr(cell, "r", "B2")
	SetAttr(cell, "t", "s")
	v := NewElement("v")
	AppendChild(v, NewText("7"))
	AppendChild(cell, v)
	AppendChild(row, cell)
	AppendChild(sheetData, row)

	out := string(Serialize(doc))
	for _, want := range []string{`<row r="2">`, `<c r="B2" t="s">`, `<v>7</v>`} {
		if !strings.Contains(out, want) {
			t.Errorf("serialized output missing %s:\n%s", want, out)
		}
	}

	// The mutated tree must itself still be queryable.
	got, err := Query(doc, `//row[@r="2"]/c/v`)
	if err != nil {
		t.Fatalf("Query() unexpected error: %v", err)
	}
	if got == nil || got.InnerText() != "7" {
		t.Errorf("Query on mutated tree = %v, want node with text 7", got)
	}
}

func TestElementHelpers(t *testing.T) {
	doc, err := Parse([]byte(sampleSheet))
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}
	ws := RootElement(doc)

	sheetData := Element(ws, "sheetData")
	if sheetData == nil {
		t.Fatal("Element(sheetData) = nil")
	}
	if Element(ws, "absent") != nil {
		t.Error("Element(absent) should be nil")
	}

	rows := Elements(sheetData, "row")
	if len(rows) != 2 {
		t.Errorf("Elements(row) = %d, want 2", len(rows))
	}

	children := ChildElements(rows[0])
	if len(children) != 2 {
		t.Errorf("ChildElements(first row) = %d, want 2", len(children))
	}
	if children[0].Data != "c" {
		t.Errorf("first child = %q, want c", children[0].Data)
	}
}
