package xmlextract

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestExtractEmbeddedDeclaration(t *testing.T) {
	res := Extract(`blah <?xml version="1.0"?><root><a/></root> trailing`)
	if res.Status != StatusParsed {
		t.Fatalf("status=%s xml=%q", res.Status, res.XML)
	}
	want := "<?xml version=\"1.0\"?>\n<root>\n  <a/>\n</root>"
	if res.XML != want {
		t.Fatalf("got=%q want=%q", res.XML, want)
	}
	if strings.Contains(res.XML, "blah") || strings.Contains(res.XML, "trailing") {
		t.Fatalf("surrounding prose kept: %q", res.XML)
	}
}

func TestExtractIdempotent(t *testing.T) {
	inputs := []string{
		`<?xml version="1.0"?><root><a/></root>`,
		`Sure! <root main_tree_to_execute="MainTree"><BehaviorTree ID="MainTree"><Sequence><Action ID="Move" goal="a &amp; b"/><!-- check --><Condition ID="CanEngage">ready</Condition></Sequence></BehaviorTree></root> Done.`,
		"<behavior_tree>\n\n   <node>text\n\nwith gap</node>\n<node attr=\"x\ny\"/>\n</behavior_tree>",
		`<root xmlns:bt="urn:bt"><bt:Seq>mixed <b>bold</b> tail</bt:Seq></root>`,
	}
	for _, in := range inputs {
		first := Extract(in)
		if first.Status != StatusParsed {
			t.Fatalf("status=%s for %q", first.Status, in)
		}
		second := Extract(first.XML)
		if second.Status != StatusParsed || second.XML != first.XML {
			t.Fatalf("not idempotent:\nfirst=%q\nsecond=%q", first.XML, second.XML)
		}
		if strings.Contains(first.XML, "\n\n") {
			t.Fatalf("blank line kept: %q", first.XML)
		}
	}
}

func TestExtractPrettyLayout(t *testing.T) {
	res := Extract(`<root><Seq><Action ID="A"/><Cond>ok</Cond></Seq><Empty></Empty></root>`)
	want := strings.Join([]string{
		`<root>`,
		`  <Seq>`,
		`    <Action ID="A"/>`,
		`    <Cond>ok</Cond>`,
		`  </Seq>`,
		`  <Empty/>`,
		`</root>`,
	}, "\n")
	if res.XML != want {
		t.Fatalf("got:\n%s\nwant:\n%s", res.XML, want)
	}
}

func TestExtractParsesBackToFragment(t *testing.T) {
	fragment := `<root><BehaviorTree ID="Main"><Sequence><Action ID="IssueMovementOrdersTask" speed="3"/></Sequence></BehaviorTree></root>`
	res := Extract("Here is your tree:\n" + fragment + "\nLet me know if you need changes.")
	if res.Status != StatusParsed {
		t.Fatalf("status=%s", res.Status)
	}
	if canonical(t, res.XML) != canonical(t, fragment) {
		t.Fatalf("content changed:\n%s\n%s", canonical(t, res.XML), canonical(t, fragment))
	}
}

func TestExtractSpanIgnoresGreaterThanInAttribute(t *testing.T) {
	in := `<root><Cond expr="a > b"/></root> and a stray > later`
	res := Extract(in)
	if res.Status != StatusParsed {
		t.Fatalf("status=%s xml=%q", res.Status, res.XML)
	}
	if strings.Contains(res.XML, "stray") {
		t.Fatalf("span ran past the root element: %q", res.XML)
	}
}

func TestExtractMalformedReturnsRawSlice(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: `text <root><a></b></root> more`, want: `<root><a></b></root>`},
		{in: `x <root><a>unclosed</root>`, want: `<root><a>unclosed</root>`},
		{in: `prefix <behavior id="1"><node>`, want: `<behavior id="1"><node>`},
	}
	for _, tc := range cases {
		res := Extract(tc.in)
		if res.Status != StatusRaw {
			t.Fatalf("status=%s for %q", res.Status, tc.in)
		}
		if res.XML != tc.want {
			t.Fatalf("got=%q want=%q", res.XML, tc.want)
		}
	}
}

func TestExtractNoClosingBracket(t *testing.T) {
	in := "the tree starts <root but the model stopped"
	res := Extract(in)
	if res.Status != StatusRaw || res.XML != in {
		t.Fatalf("res=%+v", res)
	}
}

func TestExtractNotFound(t *testing.T) {
	in := "I cannot produce a tree for that scenario."
	res := Extract(in)
	if res.Status != StatusNotFound || res.XML != in || res.Found() {
		t.Fatalf("res=%+v", res)
	}
	if empty := Extract(""); empty.Status != StatusNotFound || empty.XML != "" {
		t.Fatalf("empty=%+v", empty)
	}
}

func TestExtractMarkerPriority(t *testing.T) {
	in := `<root><x/></root> then <behavior><y/></behavior>`
	res := Extract(in)
	if !strings.HasPrefix(res.XML, "<behavior>") {
		t.Fatalf("declaration-less priority ignored: %q", res.XML)
	}
}

func TestExtractNeverEmptyForNonEmptyInput(t *testing.T) {
	inputs := []string{"<", "<root", "<?xml", "<root>>>", "<<root/>", "\x00<root>\xff</root>", "<?xml?><root/>"}
	for _, in := range inputs {
		res := Extract(in)
		if res.XML == "" {
			t.Fatalf("empty result for %q", in)
		}
	}
}

func TestFormatRejectsMultipleRoots(t *testing.T) {
	if _, err := Format(`<a/><b/>`); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := Format(`junk<a/>`); err == nil {
		t.Fatalf("expected error")
	}
}

// canonical flattens a document into its token stream without whitespace-only text.
func canonical(t *testing.T, doc string) string {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(doc))
	var b strings.Builder
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return b.String()
		}
		if err != nil {
			t.Fatalf("parse %q: %v", doc, err)
		}
		switch v := tok.(type) {
		case xml.StartElement:
			b.WriteString("<" + v.Name.Local)
			for _, a := range v.Attr {
				b.WriteString(" " + a.Name.Local + "=" + a.Value)
			}
			b.WriteString(">")
		case xml.EndElement:
			b.WriteString("</" + v.Name.Local + ">")
		case xml.CharData:
			if s := strings.TrimSpace(string(v)); s != "" {
				b.WriteString(s)
			}
		}
	}
}
