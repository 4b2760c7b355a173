package parse

// Field-name normalization
//
// Models vary in how they name response fields: snake_case, synonyms, or
// provider-specific habits. Normalization maps every known variant onto the
// canonical camelCase contract before downstream code touches the object,
// so the engine's decoders only ever read one spelling.

// topLevelAliases maps variant field names to canonical top-level keys.
var topLevelAliases = map[string]string{
	// node proposals
	"proposed_nodes": "proposedNodes",
	"new_nodes":      "proposedNodes",
	"nodes":          "proposedNodes",
	"concepts":       "proposedNodes",

	// edge proposals
	"proposed_edges": "proposedEdges",
	"new_edges":      "proposedEdges",
	"edges":          "proposedEdges",
	"relations":      "proposedEdges",
	"relationships":  "proposedEdges",

	// graph-building completeness vote
	"graph_complete": "graphComplete",
	"is_complete":    "graphComplete",
	"complete":       "graphComplete",

	// assignment selections
	"selected_node_ids": "selectedNodeIds",
	"selected_nodes":    "selectedNodeIds",
	"selections":        "selectedNodeIds",
	"node_ids":          "selectedNodeIds",

	// analysis findings
	"findings":     "observations",
	"cells":        "observations",
	"observations": "observations",

	// analysis consensus vote
	"consensus_reached": "consensus",
	"agree":             "consensus",

	// free-text note for the shared log
	"comment": "note",
	"summary": "note",
	"message": "note",

	"rationale":   "reasoning",
	"explanation": "reasoning",
}

// nestedAliases maps variant field names inside proposal/observation
// objects onto their canonical spellings.
var nestedAliases = map[string]string{
	// node proposal fields
	"name":               "label",
	"title":              "label",
	"desc":               "description",
	"detail":             "description",
	"node_type":          "nodeType",
	"source_dataset":     "sourceDataset",
	"dataset":            "sourceDataset",
	"source_element_ids": "sourceElementIds",
	"element_ids":        "sourceElementIds",
	"elements":           "sourceElementIds",

	// edge proposal fields
	"source_id":      "source",
	"from":           "source",
	"source_node_id": "source",
	"source_ref":     "source",
	"target_id":      "target",
	"to":             "target",
	"target_node_id": "target",
	"target_ref":     "target",
	"edge_type":      "edgeType",
	"relation":       "edgeType",

	// observation fields
	"element_id":       "elementId",
	"element":          "elementId",
	"score":            "polarity",
	"alignment":        "polarity",
	"severity":         "criticality",
	"evidence_summary": "evidence",
}

// Normalize rewrites known variant field names onto the canonical camelCase
// contract. Top-level keys use the top-level alias table; objects found one
// level down inside arrays use the nested table. A canonical key already
// present wins over any alias for the same key. The input map is not
// mutated.
func Normalize(obj map[string]interface{}) map[string]interface{} {
	if obj == nil {
		return nil
	}

	out := make(map[string]interface{}, len(obj))

	// First pass: keys that are already canonical (or unknown) copy as-is.
	// Map iteration order is random in Go, so aliases must not race the
	// canonical spelling for the same slot.
	for key, value := range obj {
		if _, isAlias := topLevelAliases[key]; isAlias && topLevelAliases[key] != key {
			continue
		}
		out[key] = normalizeValue(value)
	}

	// Second pass: aliases fill only still-empty canonical slots
	for key, value := range obj {
		canonical, isAlias := topLevelAliases[key]
		if !isAlias || canonical == key {
			continue
		}
		if _, exists := out[canonical]; !exists {
			out[canonical] = normalizeValue(value)
		}
	}

	return out
}

// normalizeValue rewrites nested aliases inside arrays of objects.
func normalizeValue(value interface{}) interface{} {
	arr, ok := value.([]interface{})
	if !ok {
		return value
	}

	normalized := make([]interface{}, len(arr))
	for i, item := range arr {
		obj, ok := item.(map[string]interface{})
		if !ok {
			normalized[i] = item
			continue
		}

		nested := make(map[string]interface{}, len(obj))
		for key, v := range obj {
			if canonical, isAlias := nestedAliases[key]; isAlias && canonical != key {
				continue
			}
			nested[key] = v
		}
		for key, v := range obj {
			canonical, isAlias := nestedAliases[key]
			if !isAlias || canonical == key {
				continue
			}
			if _, exists := nested[canonical]; !exists {
				nested[canonical] = v
			}
		}
		normalized[i] = nested
	}

	return normalized
}
