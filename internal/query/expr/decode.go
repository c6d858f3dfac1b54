package expr

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/hbollon/go-edlib"

	"github.com/standardbeagle/silo/internal/column"
	siloerrors "github.com/standardbeagle/silo/internal/errors"
	"github.com/standardbeagle/silo/internal/types"
)

// envelopeSchema validates only the shape every node must share before
// the per-type decode runs: an object carrying a "type" string. Per-node
// required fields are checked during the per-type decode itself, so
// their errors can name the specific field.
var envelopeSchema = &jsonschema.Schema{
	Type:     "object",
	Required: []string{"type"},
	Properties: map[string]*jsonschema.Schema{
		"type": {Type: "string"},
	},
}

var resolvedEnvelopeSchema = mustResolveEnvelope()

func mustResolveEnvelope() *jsonschema.Resolved {
	resolved, err := envelopeSchema.Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("expr: invalid envelope schema: %v", err))
	}
	return resolved
}

// envelope is the generic wire shape of one expression node: a "type"
// discriminator plus every field any node kind might carry.
type envelope struct {
	Type     string            `json:"type"`
	Children []json.RawMessage `json:"children,omitempty"`
	Child    json.RawMessage   `json:"child,omitempty"`

	Column       string `json:"column,omitempty"`
	SequenceName string `json:"sequenceName,omitempty"`

	Position int     `json:"position,omitempty"`
	Symbol   *string `json:"symbol,omitempty"`

	Value      *string  `json:"value,omitempty"`
	IntValue   *int32   `json:"intValue,omitempty"`
	FloatValue *float64 `json:"floatValue,omitempty"`
	BoolValue  *bool    `json:"boolValue,omitempty"`
	DateValue  *string  `json:"dateValue,omitempty"`

	Values []string `json:"values,omitempty"`

	From     *string  `json:"from,omitempty"`
	To       *string  `json:"to,omitempty"`
	IntFrom  *int32   `json:"intFrom,omitempty"`
	IntTo    *int32   `json:"intTo,omitempty"`
	FloatFrom *float64 `json:"floatFrom,omitempty"`
	FloatTo   *float64 `json:"floatTo,omitempty"`

	Pattern string `json:"pattern,omitempty"`

	K       *int `json:"k,omitempty"`
	Exactly bool `json:"exactly,omitempty"`

	IncludeSublineages bool   `json:"includeSublineages,omitempty"`
	RecombinantMode    string `json:"recombinantFollowingMode,omitempty"`

	NodeID string `json:"nodeId,omitempty"`
}

// Decode parses one filter-expression node (and, recursively, its
// children) from JSON. knownColumns is used to build a "did you mean"
// suggestion when a node references an unrecognized column.
func Decode(data []byte, knownColumns []string) (Expression, error) {
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, siloerrors.NewBadRequestError("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	if err := resolvedEnvelopeSchema.Validate(generic); err != nil {
		return nil, siloerrors.NewBadRequestError("type", fmt.Sprintf("malformed expression node: %v", err))
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, siloerrors.NewBadRequestError("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return decodeEnvelope(env, knownColumns)
}

func decodeEnvelope(env envelope, knownColumns []string) (Expression, error) {
	switch env.Type {
	case "True":
		return &True{}, nil
	case "False":
		return &False{}, nil

	case "And", "Or":
		children, err := decodeChildren(env.Children, knownColumns)
		if err != nil {
			return nil, err
		}
		if env.Type == "And" {
			return &And{Children: children}, nil
		}
		return &Or{Children: children}, nil

	case "NOf":
		children, err := decodeChildren(env.Children, knownColumns)
		if err != nil {
			return nil, err
		}
		if env.K == nil {
			return nil, siloerrors.NewBadRequestError("k", "NOf requires a k field")
		}
		return &NOf{Children: children, K: *env.K, Exactly: env.Exactly}, nil

	case "Not", "Maybe", "Exact":
		if len(env.Child) == 0 {
			return nil, siloerrors.NewBadRequestError("child", fmt.Sprintf("%s requires a child", env.Type))
		}
		child, err := Decode(env.Child, knownColumns)
		if err != nil {
			return nil, err
		}
		switch env.Type {
		case "Not":
			return &Not{Child: child}, nil
		case "Maybe":
			return &Maybe{Child: child}, nil
		default:
			return &Exact{Child: child}, nil
		}

	case "DateBetween":
		from, err := decodeOptionalDate(env.From)
		if err != nil {
			return nil, err
		}
		to, err := decodeOptionalDate(env.To)
		if err != nil {
			return nil, err
		}
		if err := requireColumn(env.Column, "column", knownColumns); err != nil {
			return nil, err
		}
		return &DateBetween{Column: env.Column, From: from, To: to}, nil

	case "DateEquals":
		if env.DateValue == nil {
			return nil, siloerrors.NewBadRequestError("dateValue", "DateEquals requires dateValue")
		}
		v, err := types.ParseDate(*env.DateValue)
		if err != nil {
			return nil, siloerrors.NewBadRequestError("dateValue", err.Error())
		}
		if err := requireColumn(env.Column, "column", knownColumns); err != nil {
			return nil, err
		}
		return &DateEquals{Column: env.Column, Value: v}, nil

	case "IntEquals":
		if env.IntValue == nil {
			return nil, siloerrors.NewBadRequestError("intValue", "IntEquals requires intValue")
		}
		if err := requireColumn(env.Column, "column", knownColumns); err != nil {
			return nil, err
		}
		return &IntEquals{Column: env.Column, Value: *env.IntValue}, nil

	case "FloatEquals":
		if env.FloatValue == nil {
			return nil, siloerrors.NewBadRequestError("floatValue", "FloatEquals requires floatValue")
		}
		if err := requireColumn(env.Column, "column", knownColumns); err != nil {
			return nil, err
		}
		return &FloatEquals{Column: env.Column, Value: *env.FloatValue}, nil

	case "BoolEquals":
		if env.BoolValue == nil {
			return nil, siloerrors.NewBadRequestError("boolValue", "BoolEquals requires boolValue")
		}
		if err := requireColumn(env.Column, "column", knownColumns); err != nil {
			return nil, err
		}
		return &BoolEquals{Column: env.Column, Value: *env.BoolValue}, nil

	case "StringEquals":
		if env.Value == nil {
			return nil, siloerrors.NewBadRequestError("value", "StringEquals requires value")
		}
		if err := requireColumn(env.Column, "column", knownColumns); err != nil {
			return nil, err
		}
		return &StringEquals{Column: env.Column, Value: *env.Value}, nil

	case "IntBetween":
		if err := requireColumn(env.Column, "column", knownColumns); err != nil {
			return nil, err
		}
		return &IntBetween{Column: env.Column, From: env.IntFrom, To: env.IntTo}, nil

	case "FloatBetween":
		if err := requireColumn(env.Column, "column", knownColumns); err != nil {
			return nil, err
		}
		return &FloatBetween{Column: env.Column, From: env.FloatFrom, To: env.FloatTo}, nil

	case "StringInSet":
		if err := requireColumn(env.Column, "column", knownColumns); err != nil {
			return nil, err
		}
		return &StringInSet{Column: env.Column, Values: env.Values}, nil

	case "StringSearch":
		if env.Pattern == "" {
			return nil, siloerrors.NewBadRequestError("pattern", "StringSearch requires pattern")
		}
		if err := requireColumn(env.Column, "column", knownColumns); err != nil {
			return nil, err
		}
		return &StringSearch{Column: env.Column, Pattern: env.Pattern}, nil

	case "NucleotideEquals", "AminoAcidEquals":
		return decodeSymbolEquals(env)

	case "NucleotideInsertionContains", "AminoAcidInsertionContains":
		return decodeInsertionContains(env)

	case "HasNucleotideMutation", "HasAminoAcidMutation":
		return decodeHasMutation(env)

	case "Lineage":
		return decodeLineage(env, knownColumns)

	case "PhyloDescendantOf":
		if env.NodeID == "" {
			return nil, siloerrors.NewBadRequestError("nodeId", "PhyloDescendantOf requires nodeId")
		}
		if err := requireColumn(env.Column, "column", knownColumns); err != nil {
			return nil, err
		}
		return &PhyloDescendantOf{Column: env.Column, NodeID: env.NodeID}, nil

	case "IsNull":
		if err := requireColumn(env.Column, "column", knownColumns); err != nil {
			return nil, err
		}
		return &IsNull{Column: env.Column}, nil

	default:
		err := siloerrors.NewBadRequestError("type", fmt.Sprintf("unknown expression node type %q", env.Type))
		if suggestion, ok := suggestColumn(env.Type, allNodeTypeNames()); ok {
			err = err.WithSuggestion(suggestion)
		}
		return nil, err
	}
}

func decodeChildren(raw []json.RawMessage, knownColumns []string) ([]Expression, error) {
	out := make([]Expression, 0, len(raw))
	for _, r := range raw {
		child, err := Decode(r, knownColumns)
		if err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	return out, nil
}

func decodePosition(env envelope) (int, error) {
	if env.Position == 0 {
		return 0, siloerrors.NewBadRequestError("position", "position is 1-indexed on the wire; 0 is rejected")
	}
	return env.Position - 1, nil
}

func decodeSymbolEquals(env envelope) (Expression, error) {
	pos, err := decodePosition(env)
	if err != nil {
		return nil, err
	}
	if env.Symbol == nil || len(*env.Symbol) == 0 {
		return nil, siloerrors.NewBadRequestError("symbol", "symbol equality requires a symbol")
	}
	kind := Nucleotide
	if env.Type == "AminoAcidEquals" {
		kind = AminoAcid
	}
	sym := *env.Symbol
	if sym == "." {
		return &SymbolEquals{Kind: kind, SequenceName: env.SequenceName, Position: pos, IsDot: true}, nil
	}
	if len(sym) != 1 {
		return nil, siloerrors.NewBadRequestError("symbol", fmt.Sprintf("symbol must be one character or \".\", got %q", sym))
	}
	return &SymbolEquals{Kind: kind, SequenceName: env.SequenceName, Position: pos, Symbol: sym[0]}, nil
}

func decodeHasMutation(env envelope) (Expression, error) {
	pos, err := decodePosition(env)
	if err != nil {
		return nil, err
	}
	kind := Nucleotide
	if env.Type == "HasAminoAcidMutation" {
		kind = AminoAcid
	}
	return &HasMutation{Kind: kind, SequenceName: env.SequenceName, Position: pos}, nil
}

func decodeInsertionContains(env envelope) (Expression, error) {
	pos, err := decodePosition(env)
	if err != nil {
		return nil, err
	}
	if env.Pattern == "" {
		return nil, siloerrors.NewBadRequestError("pattern", "insertion search requires pattern")
	}
	kind := Nucleotide
	if env.Type == "AminoAcidInsertionContains" {
		kind = AminoAcid
	}
	return &InsertionContains{Kind: kind, SequenceName: env.SequenceName, Position: pos, Pattern: env.Pattern}, nil
}

func decodeLineage(env envelope, knownColumns []string) (Expression, error) {
	if err := requireColumn(env.Column, "column", knownColumns); err != nil {
		return nil, err
	}
	mode := column.RecombinantDoNotFollow
	switch env.RecombinantMode {
	case "", "doNotFollow":
		mode = column.RecombinantDoNotFollow
	case "alwaysFollow":
		mode = column.RecombinantAlwaysFollow
	case "followIfFullyContainedInClade":
		mode = column.RecombinantFollowIfFullyContainedInClade
	default:
		return nil, siloerrors.NewBadRequestError("recombinantFollowingMode", fmt.Sprintf("unknown mode %q", env.RecombinantMode))
	}
	return &Lineage{Column: env.Column, Value: env.Value, IncludeSublineages: env.IncludeSublineages, RecombinantMode: mode}, nil
}

func decodeOptionalDate(s *string) (*types.Date, error) {
	if s == nil {
		return nil, nil
	}
	v, err := types.ParseDate(*s)
	if err != nil {
		return nil, siloerrors.NewBadRequestError("date", err.Error())
	}
	return &v, nil
}

func requireColumn(column, field string, knownColumns []string) error {
	if column == "" {
		return siloerrors.NewBadRequestError(field, "column name must not be empty")
	}
	for _, c := range knownColumns {
		if c == column {
			return nil
		}
	}
	err := siloerrors.NewBadRequestError(field, fmt.Sprintf("unknown column %q", column))
	if suggestion, ok := suggestColumn(column, knownColumns); ok {
		err = err.WithSuggestion(suggestion)
	}
	return err
}

// suggestColumn finds the closest candidate to name by Jaro-Winkler
// similarity, used to build BadRequestError's "did you mean" hint.
func suggestColumn(name string, candidates []string) (string, bool) {
	best := ""
	var bestScore float32 = -1
	for _, c := range candidates {
		score, err := edlib.StringsSimilarity(name, c, edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	if best == "" || bestScore < 0.6 {
		return "", false
	}
	return best, true
}

func allNodeTypeNames() []string {
	return []string{
		"True", "False", "And", "Or", "NOf", "Not", "Maybe", "Exact",
		"DateBetween", "DateEquals", "IntEquals", "FloatEquals", "BoolEquals",
		"StringEquals", "IntBetween", "FloatBetween", "StringInSet", "StringSearch",
		"NucleotideEquals", "AminoAcidEquals", "HasNucleotideMutation", "HasAminoAcidMutation",
		"NucleotideInsertionContains", "AminoAcidInsertionContains",
		"Lineage", "PhyloDescendantOf", "IsNull",
	}
}
