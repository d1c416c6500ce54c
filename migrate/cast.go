package migrate

import (
	"fmt"

	"github.com/icetype/icetype/schema/field"
)

// numericRank orders the numeric canonical types by width. Casting to
// a lower rank can lose information.
var numericRank = map[string]int{
	"bool":    1,
	"int":     2,
	"bigint":  3,
	"float":   4,
	"decimal": 5,
}

// textual reports whether the canonical type stores text.
func textual(t string) bool {
	return t == "string" || t == "text" || t == "varchar"
}

// castRisk classifies the cast from one definition to another as
// narrowing or ambiguous. Safe widenings (int to bigint, anything to
// text) return false. The classification is deliberately pessimistic:
// an unknown type pair is reported as ambiguous rather than assumed
// safe.
func castRisk(from, to *field.Definition) (bool, string) {
	if from.Type == to.Type && from.IsArray == to.IsArray {
		return sameTypeRisk(from, to)
	}
	if from.IsArray != to.IsArray {
		return true, fmt.Sprintf("ambiguous cast between array and scalar (%s to %s)", from, to)
	}

	fromRank, fromNumeric := numericRank[from.Type]
	toRank, toNumeric := numericRank[to.Type]
	switch {
	case fromNumeric && toNumeric:
		if toRank < fromRank {
			return true, fmt.Sprintf("narrowing numeric cast from %s to %s", from.Type, to.Type)
		}
		return false, ""
	case textual(to.Type):
		// Anything renders as text.
		if textual(from.Type) {
			return textLengthRisk(from, to)
		}
		return false, ""
	case textual(from.Type):
		return true, fmt.Sprintf("ambiguous cast from text to %s: unparsable values will fail or be lost", to.Type)
	case from.Type == "timestamp" && to.Type == "date":
		return true, "narrowing cast from timestamp to date drops the time component"
	case from.Type == "date" && to.Type == "timestamp":
		return false, ""
	}
	return true, fmt.Sprintf("ambiguous cast from %s to %s", from.Type, to.Type)
}

// sameTypeRisk covers parameter changes within one base type:
// shrinking a varchar length or a decimal precision/scale narrows.
func sameTypeRisk(from, to *field.Definition) (bool, string) {
	if to.Length > 0 && (from.Length == 0 || from.Length > to.Length) && from.Length != to.Length {
		return true, fmt.Sprintf("narrowing length from %d to %d may truncate values", from.Length, to.Length)
	}
	if to.Precision > 0 && from.Precision > to.Precision {
		return true, fmt.Sprintf("narrowing precision from %d to %d", from.Precision, to.Precision)
	}
	if from.Precision > 0 && to.Precision > 0 && to.Scale < from.Scale {
		return true, fmt.Sprintf("narrowing scale from %d to %d", from.Scale, to.Scale)
	}
	return false, ""
}

// textLengthRisk covers casts between the textual types, where only a
// bounded target length can lose data.
func textLengthRisk(from, to *field.Definition) (bool, string) {
	if to.Length > 0 && (from.Length == 0 || from.Length > to.Length) {
		return true, fmt.Sprintf("narrowing length from %d to %d may truncate values", from.Length, to.Length)
	}
	return false, ""
}
