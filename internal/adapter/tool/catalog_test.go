package tool

import (
	"encoding/json"
	"log/slog"
	"testing"

	"wattwise/internal/domain"
)

func TestCatalogPreservesRegistrationOrder(t *testing.T) {
	c := NewDefaultCatalog(slog.Default())

	want := []string{
		NameFetchRenewableData,
		NameCreateDashboard,
		NameCalculateROI,
		NameGetPolicyInformation,
		NameSearchRenewableDatabase,
	}

	defs := c.Definitions()
	if len(defs) != len(want) {
		t.Fatalf("definitions = %d, want %d", len(defs), len(want))
	}
	for i, name := range want {
		if defs[i].Name != name {
			t.Errorf("defs[%d] = %q, want %q", i, defs[i].Name, name)
		}
	}

	schemas := c.Schemas()
	for i, name := range want {
		if schemas[i].Name != name {
			t.Errorf("schemas[%d] = %q, want %q", i, schemas[i].Name, name)
		}
	}
}

func TestCatalogLookup(t *testing.T) {
	c := NewDefaultCatalog(slog.Default())

	def, ok := c.Lookup(NameCalculateROI)
	if !ok {
		t.Fatal("calculate_roi should be registered")
	}
	if def.Name != NameCalculateROI {
		t.Errorf("name = %q", def.Name)
	}

	if _, ok := c.Lookup("get_weather"); ok {
		t.Error("unknown tool should not resolve")
	}
}

func TestCatalogDuplicateRegistration(t *testing.T) {
	c := NewDefaultCatalog(slog.Default())
	err := c.Register(domain.ToolDefinition{Name: NameCalculateROI})
	if err == nil {
		t.Fatal("expected error on duplicate registration")
	}
}

func TestValidatorRequiredFields(t *testing.T) {
	v := NewValidator()
	if err := v.AddSchema("t", json.RawMessage(`{
		"type": "object",
		"properties": {"energy_type": {"type": "string"}},
		"required": ["energy_type"]
	}`)); err != nil {
		t.Fatalf("AddSchema: %v", err)
	}

	if err := v.Validate("t", []byte(`{"energy_type":"solar"}`)); err != nil {
		t.Errorf("valid args rejected: %v", err)
	}
	if err := v.Validate("t", []byte(`{}`)); err == nil {
		t.Error("missing required field accepted")
	}
	if err := v.Validate("t", []byte(`not json`)); err == nil {
		t.Error("malformed JSON accepted")
	}

	// No schema registered: validation is a no-op.
	if err := v.Validate("unregistered", []byte(`{"anything":1}`)); err != nil {
		t.Errorf("unregistered tool should pass: %v", err)
	}
}
