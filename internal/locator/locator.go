// Package locator turns raw page markup into a ranked inventory of
// addressable elements. The inventory is what grounds script synthesis:
// generated code may only reference locators proven to exist in the snapshot
// the inventory was extracted from.
package locator

import (
	"fmt"
	"strings"
)

// =============================================================================
// RECORD TYPES
// =============================================================================

// RecordType classifies how a locator addresses its element.
type RecordType string

const (
	TypeID    RecordType = "id"
	TypeName  RecordType = "name"
	TypeCSS   RecordType = "css"
	TypeText  RecordType = "text"
	TypeXPath RecordType = "xpath"
)

// Locator reliability ranking, lower is better. Ids survive markup churn
// best, positional xpaths worst.
const (
	PriorityID = 1 + iota
	PriorityName
	PriorityCSS
	PriorityText
	PriorityXPath
)

func priorityFor(t RecordType) int {
	switch t {
	case TypeID:
		return PriorityID
	case TypeName:
		return PriorityName
	case TypeCSS:
		return PriorityCSS
	case TypeText:
		return PriorityText
	default:
		return PriorityXPath
	}
}

// Record is one addressable element found in markup. Value is the bare
// locator with no sigils: an id without "#", a class without ".".
type Record struct {
	Type        RecordType
	Value       string
	Tag         string
	Text        string // nearby visible text, for disambiguation
	InputType   string // declared type for form controls
	Placeholder string
	Priority    int
}

// OptionGroup is a set of same-named radio or checkbox inputs addressed as
// one logical field.
type OptionGroup struct {
	Name   string
	Kind   string // "radio" or "checkbox"
	Values []string
}

// FormRecord describes a form element and how it submits.
type FormRecord struct {
	ID     string
	Name   string
	Action string
	Method string
}

// Handle returns the form's preferred address, id before name.
func (f FormRecord) Handle() string {
	if f.ID != "" {
		return f.ID
	}
	return f.Name
}

// =============================================================================
// INVENTORY
// =============================================================================

// Inventory is the full set of locators extracted from one markup snapshot,
// grouped by category. It is valid only for the snapshot it came from and is
// never reused across snapshots.
type Inventory struct {
	IDs         []Record
	Names       []Record
	Buttons     []Record
	Inputs      []Record
	RadioGroups []OptionGroup
	Forms       []FormRecord
}

// NewInventory returns an empty inventory.
func NewInventory() *Inventory {
	return &Inventory{}
}

// Count returns the total number of entries across all categories.
func (inv *Inventory) Count() int {
	return len(inv.IDs) + len(inv.Names) + len(inv.Buttons) +
		len(inv.Inputs) + len(inv.RadioGroups) + len(inv.Forms)
}

// Empty reports whether nothing addressable was found.
func (inv *Inventory) Empty() bool {
	return inv.Count() == 0
}

// Values returns the set of locator values a script may legitimately
// reference: ids, names, button texts, css classes, option-group names and
// option values, and form handles. Coverage validation checks selector
// literals pulled from generated code against this set.
func (inv *Inventory) Values() map[string]bool {
	vals := make(map[string]bool)
	add := func(v string) {
		if v != "" {
			vals[v] = true
		}
	}
	for _, r := range inv.IDs {
		add(r.Value)
	}
	for _, r := range inv.Names {
		add(r.Value)
	}
	for _, r := range inv.Buttons {
		add(r.Value)
	}
	for _, r := range inv.Inputs {
		add(r.Value)
	}
	for _, g := range inv.RadioGroups {
		add(g.Name)
		for _, v := range g.Values {
			add(v)
		}
	}
	for _, f := range inv.Forms {
		add(f.ID)
		add(f.Name)
	}
	return vals
}

// Summary serializes the inventory in rank order for inclusion in a prompt.
// limit caps the number of entries listed; 0 or negative means no cap.
// Inputs already surfaced in the id or name sections are not repeated.
func (inv *Inventory) Summary(limit int) string {
	if inv.Empty() {
		return "(no addressable elements found)"
	}

	var sb strings.Builder
	emitted := 0
	total := 0

	section := func(header string, lines []string) {
		total += len(lines)
		if len(lines) == 0 || (limit > 0 && emitted >= limit) {
			return
		}
		sb.WriteString(header)
		sb.WriteString("\n")
		for _, line := range lines {
			if limit > 0 && emitted >= limit {
				return
			}
			sb.WriteString("- ")
			sb.WriteString(line)
			sb.WriteString("\n")
			emitted++
		}
	}

	section("IDs (use as #value):", recordLines(inv.IDs, "#"))
	section("Names (use as [name='value']):", recordLines(inv.Names, ""))
	section("Buttons (match by visible text):", buttonLines(inv.Buttons))
	section("Other inputs:", recordLines(unhandledInputs(inv.Inputs), ""))
	section("Radio/checkbox groups (one logical field each):", groupLines(inv.RadioGroups))
	section("Forms:", formLines(inv.Forms))

	if limit > 0 && total > emitted {
		fmt.Fprintf(&sb, "... and %d more\n", total-emitted)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// unhandledInputs filters out inputs that the id and name sections already
// cover.
func unhandledInputs(inputs []Record) []Record {
	var rest []Record
	for _, r := range inputs {
		if r.Priority > PriorityName {
			rest = append(rest, r)
		}
	}
	return rest
}

func recordLines(records []Record, sigil string) []string {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		var sb strings.Builder
		sb.WriteString(sigil)
		sb.WriteString(r.Value)
		sb.WriteString(" [")
		sb.WriteString(r.Tag)
		if r.InputType != "" && r.InputType != r.Tag {
			sb.WriteString(" type=")
			sb.WriteString(r.InputType)
		}
		if r.Placeholder != "" {
			fmt.Fprintf(&sb, " placeholder=%q", r.Placeholder)
		}
		sb.WriteString("]")
		if r.Text != "" {
			fmt.Fprintf(&sb, " %q", r.Text)
		}
		lines = append(lines, sb.String())
	}
	return lines
}

func buttonLines(buttons []Record) []string {
	lines := make([]string, 0, len(buttons))
	for _, r := range buttons {
		switch r.Type {
		case TypeText:
			lines = append(lines, fmt.Sprintf("%q [%s]", r.Value, r.Tag))
		case TypeCSS:
			lines = append(lines, fmt.Sprintf(".%s [%s, no visible text]", r.Value, r.Tag))
		default:
			lines = append(lines, fmt.Sprintf("%s [%s, no visible text]", r.Value, r.Tag))
		}
	}
	return lines
}

func groupLines(groups []OptionGroup) []string {
	lines := make([]string, 0, len(groups))
	for _, g := range groups {
		lines = append(lines, fmt.Sprintf("%s [%s]: %s", g.Name, g.Kind, strings.Join(g.Values, " | ")))
	}
	return lines
}

func formLines(forms []FormRecord) []string {
	lines := make([]string, 0, len(forms))
	for _, f := range forms {
		var sb strings.Builder
		if f.ID != "" {
			sb.WriteString("#")
			sb.WriteString(f.ID)
		} else if f.Name != "" {
			sb.WriteString(f.Name)
		} else {
			sb.WriteString("(anonymous)")
		}
		sb.WriteString(" [form")
		if f.Action != "" {
			sb.WriteString(" action=")
			sb.WriteString(f.Action)
		}
		if f.Method != "" {
			sb.WriteString(" method=")
			sb.WriteString(f.Method)
		}
		sb.WriteString("]")
		lines = append(lines, sb.String())
	}
	return lines
}
