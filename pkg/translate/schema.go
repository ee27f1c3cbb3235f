package translate

import "fmt"

// geminiUnsupportedKeywords is the JSON Schema keyword set the Gemini
// function-declaration schema rejects. They are dropped after the
// structural rewrites below have extracted what they can.
var geminiUnsupportedKeywords = []string{
	"minLength", "maxLength", "exclusiveMinimum", "exclusiveMaximum",
	"pattern", "minItems", "maxItems", "format", "default", "examples",
	"$schema", "$defs", "definitions", "const", "$ref",
	"additionalProperties", "propertyNames", "patternProperties",
	"anyOf", "oneOf", "allOf", "not", "dependencies",
	"dependentSchemas", "dependentRequired", "title", "if", "then",
	"else", "contentMediaType", "contentEncoding",
}

// SanitizeSchema rewrites a JSON Schema to the subset Gemini accepts.
// The traversal is depth-first so children are rewritten before their
// parents; the function is idempotent and never mutates its input.
//
// Rewrites, in order per node: const becomes a singleton enum; enum
// values are stringified; allOf branches are merged into the node;
// anyOf/oneOf collapse to the richest non-null branch (object beats
// array beats scalar); type arrays flatten to the first non-null type;
// the unsupported keyword set is dropped; required entries without a
// matching property are pruned; and an empty object schema gains a
// single required "reason" string property, since Gemini rejects object
// schemas with no properties.
func SanitizeSchema(schema map[string]interface{}) map[string]interface{} {
	if schema == nil {
		return nil
	}
	return sanitizeNode(schema)
}

func sanitizeNode(node map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(node))
	for k, v := range node {
		out[k] = v
	}

	// Children first: parent rewrites must not invalidate paths the
	// children were sanitized under.
	if props, ok := out["properties"].(map[string]interface{}); ok {
		clean := make(map[string]interface{}, len(props))
		for name, sub := range props {
			if m, ok := sub.(map[string]interface{}); ok {
				clean[name] = sanitizeNode(m)
			} else {
				clean[name] = sub
			}
		}
		out["properties"] = clean
	}
	if items, ok := out["items"].(map[string]interface{}); ok {
		out["items"] = sanitizeNode(items)
	}
	for _, key := range []string{"anyOf", "oneOf", "allOf"} {
		branches, ok := out[key].([]interface{})
		if !ok {
			continue
		}
		clean := make([]interface{}, 0, len(branches))
		for _, branch := range branches {
			if m, ok := branch.(map[string]interface{}); ok {
				clean = append(clean, sanitizeNode(m))
			}
		}
		out[key] = clean
	}

	// allOf: union the property sets and required lists.
	if branches, ok := out["allOf"].([]interface{}); ok {
		for _, branch := range branches {
			mergeAllOfBranch(out, branch.(map[string]interface{}))
		}
	}

	// anyOf/oneOf: keep the richest non-null branch.
	for _, key := range []string{"anyOf", "oneOf"} {
		branches, ok := out[key].([]interface{})
		if !ok || len(branches) == 0 {
			continue
		}
		best := richestBranch(branches)
		if best != nil {
			for k, v := range best {
				if _, exists := out[k]; !exists {
					out[k] = v
				}
			}
		}
	}

	// const becomes a singleton enum.
	if c, ok := out["const"]; ok {
		out["enum"] = []interface{}{c}
	}

	// Gemini enums are strings.
	if values, ok := out["enum"].([]interface{}); ok {
		strs := make([]interface{}, len(values))
		for i, v := range values {
			if s, ok := v.(string); ok {
				strs[i] = s
			} else {
				strs[i] = fmt.Sprintf("%v", v)
			}
		}
		out["enum"] = strs
		if _, ok := out["type"]; !ok {
			out["type"] = "string"
		}
	}

	// Type arrays flatten to the first non-null entry.
	if types, ok := out["type"].([]interface{}); ok {
		flat := ""
		for _, t := range types {
			if s, ok := t.(string); ok && s != "null" {
				flat = s
				break
			}
		}
		if flat == "" {
			flat = "string"
		}
		out["type"] = flat
	}

	for _, key := range geminiUnsupportedKeywords {
		delete(out, key)
	}

	// required may only name declared properties.
	if required, ok := out["required"].([]interface{}); ok {
		props, _ := out["properties"].(map[string]interface{})
		kept := make([]interface{}, 0, len(required))
		for _, name := range required {
			s, ok := name.(string)
			if !ok {
				continue
			}
			if _, declared := props[s]; declared {
				kept = append(kept, s)
			}
		}
		if len(kept) > 0 {
			out["required"] = kept
		} else {
			delete(out, "required")
		}
	}

	// Gemini rejects object schemas without properties.
	if isEmptyObjectSchema(out) {
		out["type"] = "object"
		out["properties"] = map[string]interface{}{
			"reason": map[string]interface{}{
				"type":        "string",
				"description": "Reason for calling this tool",
			},
		}
		out["required"] = []interface{}{"reason"}
	}

	return out
}

// mergeAllOfBranch folds one sanitized allOf branch into the node.
func mergeAllOfBranch(node, branch map[string]interface{}) {
	if branchProps, ok := branch["properties"].(map[string]interface{}); ok {
		props, ok := node["properties"].(map[string]interface{})
		if !ok {
			props = map[string]interface{}{}
		}
		for name, sub := range branchProps {
			if _, exists := props[name]; !exists {
				props[name] = sub
			}
		}
		node["properties"] = props
		if _, ok := node["type"]; !ok {
			node["type"] = "object"
		}
	}
	if branchRequired, ok := branch["required"].([]interface{}); ok {
		required, _ := node["required"].([]interface{})
		seen := map[string]bool{}
		for _, name := range required {
			if s, ok := name.(string); ok {
				seen[s] = true
			}
		}
		for _, name := range branchRequired {
			if s, ok := name.(string); ok && !seen[s] {
				required = append(required, s)
				seen[s] = true
			}
		}
		node["required"] = required
	}
}

// richestBranch ranks anyOf/oneOf branches object > array > scalar and
// skips null branches entirely.
func richestBranch(branches []interface{}) map[string]interface{} {
	var best map[string]interface{}
	bestRank := -1
	for _, branch := range branches {
		m, ok := branch.(map[string]interface{})
		if !ok {
			continue
		}
		rank := branchRank(m)
		if rank > bestRank {
			best = m
			bestRank = rank
		}
	}
	return best
}

func branchRank(branch map[string]interface{}) int {
	t, _ := branch["type"].(string)
	switch t {
	case "null":
		return -1
	case "object":
		return 3
	case "array":
		return 2
	case "":
		if _, ok := branch["properties"]; ok {
			return 3
		}
		return 0
	default:
		return 1
	}
}

// isEmptyObjectSchema reports whether the node is an object schema (or
// a bare schema with no shape at all) without any properties.
func isEmptyObjectSchema(node map[string]interface{}) bool {
	if t, ok := node["type"].(string); ok && t != "object" {
		return false
	}
	if props, ok := node["properties"].(map[string]interface{}); ok && len(props) > 0 {
		return false
	}
	if _, ok := node["enum"]; ok {
		return false
	}
	if _, ok := node["items"]; ok {
		return false
	}
	return true
}
