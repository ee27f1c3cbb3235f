package translate

import (
	"encoding/json"
	"reflect"
	"testing"
)

func mustSchema(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("bad schema fixture: %v", err)
	}
	return m
}

func TestSanitizeSchemaConstBecomesEnum(t *testing.T) {
	in := mustSchema(t, `{"type":"string","const":"fixed"}`)
	out := SanitizeSchema(in)

	if _, ok := out["const"]; ok {
		t.Error("const should be dropped")
	}
	enum, ok := out["enum"].([]interface{})
	if !ok || len(enum) != 1 || enum[0] != "fixed" {
		t.Errorf("enum = %v, want [fixed]", out["enum"])
	}
}

func TestSanitizeSchemaEnumStringified(t *testing.T) {
	in := mustSchema(t, `{"enum":[1,2,"three",true]}`)
	out := SanitizeSchema(in)

	enum := out["enum"].([]interface{})
	want := []interface{}{"1", "2", "three", "true"}
	if !reflect.DeepEqual(enum, want) {
		t.Errorf("enum = %v, want %v", enum, want)
	}
	if out["type"] != "string" {
		t.Errorf("type = %v, want string", out["type"])
	}
}

func TestSanitizeSchemaDropsUnsupportedKeywords(t *testing.T) {
	in := mustSchema(t, `{
		"type": "string",
		"minLength": 1,
		"maxLength": 10,
		"pattern": "^a",
		"format": "email",
		"default": "x",
		"$schema": "http://json-schema.org/draft-07/schema#",
		"title": "Email"
	}`)
	out := SanitizeSchema(in)

	for _, key := range []string{"minLength", "maxLength", "pattern", "format", "default", "$schema", "title"} {
		if _, ok := out[key]; ok {
			t.Errorf("keyword %q should be dropped", key)
		}
	}
	if out["type"] != "string" {
		t.Errorf("type = %v, want string", out["type"])
	}
}

func TestSanitizeSchemaAllOfMerged(t *testing.T) {
	in := mustSchema(t, `{
		"allOf": [
			{"type":"object","properties":{"a":{"type":"string"}},"required":["a"]},
			{"type":"object","properties":{"b":{"type":"number"}},"required":["b"]}
		]
	}`)
	out := SanitizeSchema(in)

	if _, ok := out["allOf"]; ok {
		t.Error("allOf should be dropped after merging")
	}
	props := out["properties"].(map[string]interface{})
	if _, ok := props["a"]; !ok {
		t.Error("property a missing after allOf merge")
	}
	if _, ok := props["b"]; !ok {
		t.Error("property b missing after allOf merge")
	}
	required := out["required"].([]interface{})
	if len(required) != 2 {
		t.Errorf("required = %v, want both a and b", required)
	}
}

func TestSanitizeSchemaAnyOfKeepsRichestBranch(t *testing.T) {
	in := mustSchema(t, `{
		"anyOf": [
			{"type":"null"},
			{"type":"string"},
			{"type":"object","properties":{"x":{"type":"string"}}}
		]
	}`)
	out := SanitizeSchema(in)

	if _, ok := out["anyOf"]; ok {
		t.Error("anyOf should be dropped")
	}
	if out["type"] != "object" {
		t.Errorf("type = %v, want object (richest branch)", out["type"])
	}
	props := out["properties"].(map[string]interface{})
	if _, ok := props["x"]; !ok {
		t.Error("richest branch properties should be kept")
	}
}

func TestSanitizeSchemaTypeArrayFlattened(t *testing.T) {
	in := mustSchema(t, `{"type":["null","integer"]}`)
	out := SanitizeSchema(in)
	if out["type"] != "integer" {
		t.Errorf("type = %v, want integer", out["type"])
	}

	onlyNull := SanitizeSchema(mustSchema(t, `{"type":["null"],"description":"d"}`))
	if onlyNull["type"] != "string" {
		t.Errorf("type = %v, want string fallback", onlyNull["type"])
	}
}

func TestSanitizeSchemaRequiredPruned(t *testing.T) {
	in := mustSchema(t, `{
		"type": "object",
		"properties": {"kept": {"type":"string"}},
		"required": ["kept", "phantom"]
	}`)
	out := SanitizeSchema(in)

	required := out["required"].([]interface{})
	if len(required) != 1 || required[0] != "kept" {
		t.Errorf("required = %v, want [kept]", required)
	}
}

func TestSanitizeSchemaEmptyObjectGetsPlaceholder(t *testing.T) {
	for _, raw := range []string{`{}`, `{"type":"object"}`, `{"type":"object","properties":{}}`} {
		out := SanitizeSchema(mustSchema(t, raw))
		props, ok := out["properties"].(map[string]interface{})
		if !ok {
			t.Fatalf("schema %s: properties missing", raw)
		}
		reason, ok := props["reason"].(map[string]interface{})
		if !ok || reason["type"] != "string" {
			t.Errorf("schema %s: placeholder reason property missing", raw)
		}
		required, _ := out["required"].([]interface{})
		if len(required) != 1 || required[0] != "reason" {
			t.Errorf("schema %s: required = %v, want [reason]", raw, required)
		}
	}
}

func TestSanitizeSchemaNestedAndIdempotent(t *testing.T) {
	in := mustSchema(t, `{
		"type": "object",
		"properties": {
			"name": {"type":"string","minLength":1},
			"tags": {"type":"array","items":{"const":"tag","format":"slug"}},
			"mode": {"anyOf":[{"type":"null"},{"enum":[1,2]}]}
		},
		"required": ["name","missing"],
		"additionalProperties": false
	}`)

	once := SanitizeSchema(in)
	twice := SanitizeSchema(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("sanitizer not idempotent:\nonce  = %v\ntwice = %v", once, twice)
	}

	props := once["properties"].(map[string]interface{})
	items := props["tags"].(map[string]interface{})["items"].(map[string]interface{})
	if _, ok := items["format"]; ok {
		t.Error("nested format should be dropped")
	}
	enum := items["enum"].([]interface{})
	if len(enum) != 1 || enum[0] != "tag" {
		t.Errorf("nested const not converted: %v", items)
	}
}

func TestSanitizeSchemaDoesNotMutateInput(t *testing.T) {
	in := mustSchema(t, `{"type":"string","format":"email"}`)
	SanitizeSchema(in)
	if _, ok := in["format"]; !ok {
		t.Error("input schema was mutated")
	}
}

func TestSanitizeSchemaNil(t *testing.T) {
	if out := SanitizeSchema(nil); out != nil {
		t.Errorf("SanitizeSchema(nil) = %v, want nil", out)
	}
}
