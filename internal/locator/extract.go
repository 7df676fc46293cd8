package locator

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"testforge/internal/logging"
)

const (
	maxDepth   = 50
	maxTextLen = 80
)

// Extract parses markup and walks every element, collecting addressable
// locators into a fresh inventory. Parsing is best effort: malformed or
// truncated markup yields whatever can be recovered, and empty or non-HTML
// input yields an empty inventory. Extract never fails.
func Extract(markup string) *Inventory {
	inv := NewInventory()
	if strings.TrimSpace(markup) == "" {
		return inv
	}

	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		// html.Parse recovers from almost any input; treat the rare hard
		// failure as an empty document.
		logging.LocatorDebug("Markup parse failed: %v", err)
		return inv
	}

	ex := &extraction{
		inv:    inv,
		labels: labelIndex(doc),
		groups: make(map[string]*OptionGroup),
	}
	ex.walk(doc, 0)

	for _, name := range ex.groupOrder {
		inv.RadioGroups = append(inv.RadioGroups, *ex.groups[name])
	}

	logging.LocatorDebug("Extracted %d entries (%d ids, %d names, %d buttons, %d inputs, %d groups, %d forms)",
		inv.Count(), len(inv.IDs), len(inv.Names), len(inv.Buttons),
		len(inv.Inputs), len(inv.RadioGroups), len(inv.Forms))
	return inv
}

// extraction carries the working state of one Extract call.
type extraction struct {
	inv        *Inventory
	labels     map[string]string // label[for] -> label text
	groups     map[string]*OptionGroup
	groupOrder []string
}

func (ex *extraction) walk(n *html.Node, depth int) {
	if depth > maxDepth {
		return
	}
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "svg", "template", "iframe":
			return
		}
		ex.collect(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		ex.walk(c, depth+1)
	}
}

// collect records every locator the element offers. One element may appear
// in several categories: an input with an id is both an id record and an
// inputs entry.
func (ex *extraction) collect(n *html.Node) {
	tag := n.Data
	id := getAttr(n, "id")
	name := getAttr(n, "name")
	typ := strings.ToLower(getAttr(n, "type"))
	isOption := tag == "input" && (typ == "radio" || typ == "checkbox")

	if id != "" {
		ex.inv.IDs = append(ex.inv.IDs, Record{
			Type:        TypeID,
			Value:       id,
			Tag:         tag,
			Text:        ex.contextText(n, id),
			InputType:   controlType(tag, typ),
			Placeholder: getAttr(n, "placeholder"),
			Priority:    PriorityID,
		})
	}

	// Same-named radio/checkbox inputs collapse into one option group
	// instead of producing a name record per element.
	if name != "" && isOption {
		g, ok := ex.groups[name]
		if !ok {
			g = &OptionGroup{Name: name, Kind: typ}
			ex.groups[name] = g
			ex.groupOrder = append(ex.groupOrder, name)
		}
		if v := getAttr(n, "value"); v != "" {
			g.Values = append(g.Values, v)
		}
	} else if name != "" && isNamedControl(tag) {
		ex.inv.Names = append(ex.inv.Names, Record{
			Type:        TypeName,
			Value:       name,
			Tag:         tag,
			Text:        ex.contextText(n, id),
			InputType:   controlType(tag, typ),
			Placeholder: getAttr(n, "placeholder"),
			Priority:    PriorityName,
		})
	}

	if isButton(n, tag, typ) {
		ex.inv.Buttons = append(ex.inv.Buttons, buttonRecord(n, tag, typ))
	}

	switch tag {
	case "input", "textarea", "select":
		ex.inv.Inputs = append(ex.inv.Inputs, ex.inputRecord(n, tag, typ, id, name))
	case "form":
		method := strings.ToLower(getAttr(n, "method"))
		if method == "" {
			method = "get"
		}
		ex.inv.Forms = append(ex.inv.Forms, FormRecord{
			ID:     id,
			Name:   name,
			Action: getAttr(n, "action"),
			Method: method,
		})
	}
}

// inputRecord picks the most reliable handle the control offers: id, then
// name, then a css class, then a positional xpath.
func (ex *extraction) inputRecord(n *html.Node, tag, typ, id, name string) Record {
	rec := Record{
		Tag:         tag,
		InputType:   controlType(tag, typ),
		Placeholder: getAttr(n, "placeholder"),
		Text:        ex.contextText(n, id),
	}
	switch {
	case id != "":
		rec.Type, rec.Value = TypeID, id
	case name != "":
		rec.Type, rec.Value = TypeName, name
	case firstClass(n) != "":
		rec.Type, rec.Value = TypeCSS, firstClass(n)
	default:
		rec.Type, rec.Value = TypeXPath, nodePath(n)
	}
	rec.Priority = priorityFor(rec.Type)
	return rec
}

func isButton(n *html.Node, tag, typ string) bool {
	if tag == "button" {
		return true
	}
	if tag == "input" && (typ == "submit" || typ == "button" || typ == "reset") {
		return true
	}
	return getAttr(n, "role") == "button"
}

// buttonRecord keys a button by its visible text; buttons with nothing
// visible fall back down the ranking to a class or positional xpath.
func buttonRecord(n *html.Node, tag, typ string) Record {
	text := textContent(n)
	if tag == "input" {
		text = getAttr(n, "value")
	}
	if text == "" {
		text = getAttr(n, "aria-label")
	}

	rec := Record{
		Tag:       tag,
		Text:      truncate(text, maxTextLen),
		InputType: controlType(tag, typ),
	}
	switch {
	case text != "":
		rec.Type, rec.Value = TypeText, truncate(text, maxTextLen)
	case firstClass(n) != "":
		rec.Type, rec.Value = TypeCSS, firstClass(n)
	default:
		rec.Type, rec.Value = TypeXPath, nodePath(n)
	}
	rec.Priority = priorityFor(rec.Type)
	return rec
}

// contextText finds disambiguating text for an element: its own visible
// text, the label pointing at it, a wrapping label, or an aria-label.
func (ex *extraction) contextText(n *html.Node, id string) string {
	if text := textContent(n); text != "" {
		return truncate(text, maxTextLen)
	}
	if id != "" {
		if text, ok := ex.labels[id]; ok {
			return truncate(text, maxTextLen)
		}
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "label" {
			return truncate(textContent(p), maxTextLen)
		}
	}
	return truncate(getAttr(n, "aria-label"), maxTextLen)
}

// isNamedControl limits name records to elements where the name attribute
// addresses a form control. Metadata tags carry name attributes too and
// would pollute the inventory.
func isNamedControl(tag string) bool {
	switch tag {
	case "input", "textarea", "select", "button":
		return true
	}
	return false
}

// controlType normalizes the declared control type: inputs default to text,
// textarea and select report their tag.
func controlType(tag, typ string) string {
	switch tag {
	case "input":
		if typ == "" {
			return "text"
		}
		return typ
	case "textarea", "select":
		return tag
	}
	return ""
}

// =============================================================================
// NODE HELPERS
// =============================================================================

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func firstClass(n *html.Node) string {
	fields := strings.Fields(getAttr(n, "class"))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// textContent gathers the visible text under a node, space-joined.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var traverse func(*html.Node)
	traverse = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteString(" ")
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// labelIndex maps label "for" targets to their text, so controls can borrow
// their label as nearby text.
func labelIndex(doc *html.Node) map[string]string {
	labels := make(map[string]string)
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "label" {
			if target := getAttr(n, "for"); target != "" {
				labels[target] = textContent(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return labels
}

// nodePath builds a positional xpath for elements with no better handle.
func nodePath(n *html.Node) string {
	var segs []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		idx := 1
		for sib := cur.PrevSibling; sib != nil; sib = sib.PrevSibling {
			if sib.Type == html.ElementNode && sib.Data == cur.Data {
				idx++
			}
		}
		segs = append(segs, fmt.Sprintf("%s[%d]", cur.Data, idx))
	}
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	return "/" + strings.Join(segs, "/")
}
