package locator

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const loginMarkup = `<!DOCTYPE html>
<html>
<head><title>Sign In</title><meta name="viewport" content="width=device-width"></head>
<body>
  <form id="login-form" action="/login" method="POST">
    <label for="username">Username</label>
    <input id="username" name="username" type="text" placeholder="Enter username">
    <label>Password <input id="password" name="password" type="password"></label>
    <input type="checkbox" name="remember" value="yes"> Remember me
    <input type="radio" name="plan" value="basic"> Basic
    <input type="radio" name="plan" value="pro"> Pro
    <select name="region"><option>EU</option><option>US</option></select>
    <textarea name="notes" placeholder="Anything else?"></textarea>
    <button id="submit-btn" type="submit">Sign In</button>
  </form>
  <div role="button">Help</div>
</body>
</html>`

func findRecord(records []Record, value string) *Record {
	for i := range records {
		if records[i].Value == value {
			return &records[i]
		}
	}
	return nil
}

func TestExtract_IDRecords(t *testing.T) {
	inv := Extract(`<input id="discount-code"><button id="apply-btn">Apply</button>`)

	code := findRecord(inv.IDs, "discount-code")
	if code == nil {
		t.Fatal("discount-code not extracted as id record")
	}
	if code.Type != TypeID || code.Priority != PriorityID {
		t.Errorf("discount-code type=%s priority=%d, want id/%d", code.Type, code.Priority, PriorityID)
	}

	apply := findRecord(inv.IDs, "apply-btn")
	if apply == nil {
		t.Fatal("apply-btn not extracted as id record")
	}
	if apply.Priority != PriorityID {
		t.Errorf("apply-btn priority=%d, want %d", apply.Priority, PriorityID)
	}

	if btn := findRecord(inv.Buttons, "Apply"); btn == nil {
		t.Error("Apply button not keyed by visible text")
	}
}

func TestExtract_EmptyAndNonHTML(t *testing.T) {
	for _, input := range []string{"", "   \n\t  ", "just some plain text, nothing else"} {
		inv := Extract(input)
		if !inv.Empty() {
			t.Errorf("Extract(%q) found %d entries, want empty inventory", input, inv.Count())
		}
	}
}

func TestExtract_MalformedMarkup(t *testing.T) {
	// Unclosed tags and stray brackets must not prevent recovery of what is
	// addressable.
	inv := Extract(`<div><input id="first"><p>broken <button id="second">Go<div><<span`)

	if findRecord(inv.IDs, "first") == nil {
		t.Error("first not recovered from malformed markup")
	}
	if findRecord(inv.IDs, "second") == nil {
		t.Error("second not recovered from malformed markup")
	}
}

func TestExtract_LoginForm(t *testing.T) {
	inv := Extract(loginMarkup)

	user := findRecord(inv.IDs, "username")
	if user == nil {
		t.Fatal("username id record missing")
	}
	if user.InputType != "text" {
		t.Errorf("username InputType=%q, want text", user.InputType)
	}
	if user.Placeholder != "Enter username" {
		t.Errorf("username Placeholder=%q", user.Placeholder)
	}
	if user.Text != "Username" {
		t.Errorf("username Text=%q, want label text", user.Text)
	}

	// A wrapping label serves as nearby text too.
	pass := findRecord(inv.IDs, "password")
	if pass == nil {
		t.Fatal("password id record missing")
	}
	if !strings.Contains(pass.Text, "Password") {
		t.Errorf("password Text=%q, want the wrapping label text", pass.Text)
	}

	if findRecord(inv.Names, "region") == nil {
		t.Error("select name record missing")
	}
	if findRecord(inv.Names, "notes") == nil {
		t.Error("textarea name record missing")
	}

	// Radio/checkbox names group instead of producing name records.
	if findRecord(inv.Names, "plan") != nil {
		t.Error("radio name leaked into Names, want option group only")
	}
	var plan *OptionGroup
	for i := range inv.RadioGroups {
		if inv.RadioGroups[i].Name == "plan" {
			plan = &inv.RadioGroups[i]
		}
	}
	if plan == nil {
		t.Fatal("plan option group missing")
	}
	if plan.Kind != "radio" {
		t.Errorf("plan Kind=%q, want radio", plan.Kind)
	}
	if len(plan.Values) != 2 || plan.Values[0] != "basic" || plan.Values[1] != "pro" {
		t.Errorf("plan Values=%v, want [basic pro]", plan.Values)
	}

	if len(inv.Forms) != 1 {
		t.Fatalf("got %d forms, want 1", len(inv.Forms))
	}
	form := inv.Forms[0]
	if form.ID != "login-form" || form.Action != "/login" || form.Method != "post" {
		t.Errorf("form=%+v, want login-form //login/post", form)
	}

	if findRecord(inv.Buttons, "Sign In") == nil {
		t.Error("submit button not keyed by visible text")
	}
	if findRecord(inv.Buttons, "Help") == nil {
		t.Error("role=button element not extracted")
	}

	// Metadata names are not addressable controls.
	if findRecord(inv.Names, "viewport") != nil {
		t.Error("meta name leaked into Names")
	}
}

func TestExtract_ButtonFallbacks(t *testing.T) {
	inv := Extract(`<button class="btn-primary submit"><img src="go.png"></button><div><button></button></div>`)

	if len(inv.Buttons) != 2 {
		t.Fatalf("got %d buttons, want 2", len(inv.Buttons))
	}

	classed := inv.Buttons[0]
	if classed.Type != TypeCSS || classed.Value != "btn-primary" {
		t.Errorf("textless classed button=%s/%q, want css/btn-primary", classed.Type, classed.Value)
	}
	if classed.Priority != PriorityCSS {
		t.Errorf("classed button priority=%d, want %d", classed.Priority, PriorityCSS)
	}

	bare := inv.Buttons[1]
	if bare.Type != TypeXPath {
		t.Errorf("bare button type=%s, want xpath", bare.Type)
	}
	if !strings.HasPrefix(bare.Value, "/") || !strings.Contains(bare.Value, "button[1]") {
		t.Errorf("bare button xpath=%q", bare.Value)
	}
	if bare.Priority != PriorityXPath {
		t.Errorf("bare button priority=%d, want %d", bare.Priority, PriorityXPath)
	}
}

func TestExtract_InputHandleRanking(t *testing.T) {
	inv := Extract(`<input id="a" name="an"><input name="b"><input class="c-field wide"><form><input type="hidden"></form>`)

	if len(inv.Inputs) != 4 {
		t.Fatalf("got %d inputs, want 4", len(inv.Inputs))
	}
	want := []struct {
		typ   RecordType
		value string
	}{
		{TypeID, "a"},
		{TypeName, "b"},
		{TypeCSS, "c-field"},
		{TypeXPath, ""}, // positional, value checked by prefix below
	}
	for i, w := range want {
		got := inv.Inputs[i]
		if got.Type != w.typ {
			t.Errorf("input %d type=%s, want %s", i, got.Type, w.typ)
		}
		if w.value != "" && got.Value != w.value {
			t.Errorf("input %d value=%q, want %q", i, got.Value, w.value)
		}
	}
	if !strings.HasPrefix(inv.Inputs[3].Value, "/") {
		t.Errorf("handleless input fell back to %q, want positional xpath", inv.Inputs[3].Value)
	}
	if inv.Inputs[3].InputType != "hidden" {
		t.Errorf("hidden input InputType=%q", inv.Inputs[3].InputType)
	}
}

func TestExtract_SkipsNonRenderedSubtrees(t *testing.T) {
	inv := Extract(`<script>document.write('<input id="ghost">')</script><input id="real">`)

	if findRecord(inv.IDs, "ghost") != nil {
		t.Error("script content leaked into inventory")
	}
	if findRecord(inv.IDs, "real") == nil {
		t.Error("real input missing")
	}
}

func TestExtract_GroupedStructures(t *testing.T) {
	inv := Extract(`<body>
  <form id="ship-form" action="/ship" method="POST">
    <input type="radio" name="speed" value="standard">
    <input type="radio" name="speed" value="express">
    <input type="checkbox" name="addons" value="gift-wrap">
    <input type="checkbox" name="addons" value="insurance">
  </form>
  <form name="billing" action="/bill"></form>
</body>`)

	wantForms := []FormRecord{
		{ID: "ship-form", Action: "/ship", Method: "post"},
		{Name: "billing", Action: "/bill", Method: "get"},
	}
	if diff := cmp.Diff(wantForms, inv.Forms); diff != "" {
		t.Errorf("forms mismatch (-want +got):\n%s", diff)
	}

	wantGroups := []OptionGroup{
		{Name: "speed", Kind: "radio", Values: []string{"standard", "express"}},
		{Name: "addons", Kind: "checkbox", Values: []string{"gift-wrap", "insurance"}},
	}
	if diff := cmp.Diff(wantGroups, inv.RadioGroups); diff != "" {
		t.Errorf("option groups mismatch (-want +got):\n%s", diff)
	}
}
