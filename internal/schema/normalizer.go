package schema

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"sales-insights-go/internal/types"
)

// Normalizer composes header mapping, type coercion, format detection and
// required-field validation into one pass over a raw table.
type Normalizer struct {
	table *Table
	log   *logrus.Entry
}

func NewNormalizer(table *Table, log *logrus.Entry) *Normalizer {
	return &Normalizer{table: table, log: log}
}

// Normalize maps every header, coerces every cell and applies the synthesis
// fallbacks. On any unrecoverable required-field gap it reports failure and
// returns no rows; the dataset must not reach analytics.
func (n *Normalizer) Normalize(headers []string, rows [][]string) ([]types.Record, types.MappingMetadata) {
	mapped, unmapped := n.table.MapHeaders(headers)
	format := DetectFormat(mapped)

	meta := types.MappingMetadata{
		DetectedFormat:  format,
		MappedHeaders:   mapped,
		UnmappedHeaders: unmapped,
	}

	log := n.log.WithFields(logrus.Fields{
		"format":   string(format),
		"headers":  len(headers),
		"rows":     len(rows),
		"unmapped": len(unmapped),
	})
	log.Info("normalizing dataset")

	// first column wins when two headers feed the same canonical field
	colFor := make(map[string]int)
	for i, h := range headers {
		if c, ok := n.table.Canonical(strings.TrimSpace(h)); ok {
			if _, claimed := colFor[c]; !claimed {
				colFor[c] = i
			}
		}
	}

	required := n.table.RequiredFields(format)
	missing := make(map[string]bool)
	synthesized := make(map[string]bool)

	// header-level check: a required field with no column must have a
	// synthesis source before we bother walking rows
	for _, req := range required {
		if _, ok := colFor[req]; ok {
			continue
		}
		switch {
		case req == types.FieldCustomerID && hasColumn(colFor, types.FieldCustomerEmail):
			synthesized[req] = true
		case req == types.FieldOrderID && hasColumn(colFor, types.FieldDate):
			synthesized[req] = true
		default:
			missing[req] = true
		}
	}
	if len(missing) > 0 {
		meta.MissingRequiredFields = sortedKeys(missing)
		log.WithField("missing", meta.MissingRequiredFields).Warn("required fields unmappable, dataset rejected")
		return nil, meta
	}

	requiredSet := make(map[string]bool, len(required))
	for _, r := range required {
		requiredSet[r] = true
	}

	out := make([]types.Record, 0, len(rows))
	for i, row := range rows {
		rec := make(types.Record, len(colFor))
		for canonical, col := range colFor {
			raw := ""
			if col < len(row) {
				raw = row[col]
			}
			field, _ := n.table.Field(canonical)
			v, err := Coerce(raw, field.Type)
			if err != nil {
				if requiredSet[canonical] && !synthesizable(canonical) {
					missing[canonical] = true
				} else {
					// recoverable: null the field and move on
					log.WithFields(logrus.Fields{
						"row": i, "field": canonical,
					}).WithError(err).Warn("cell coercion failed, nulling field")
				}
				continue
			}
			if v != nil {
				rec[canonical] = v
			}
		}

		// synthesis fallbacks for required fields still empty on this row
		if requiredSet[types.FieldCustomerID] {
			if _, ok := rec[types.FieldCustomerID]; !ok {
				if email, ok := rec.String(types.FieldCustomerEmail); ok && email != "" {
					rec[types.FieldCustomerID] = SynthesizeCustomerID(email)
					synthesized[types.FieldCustomerID] = true
				} else {
					missing[types.FieldCustomerID] = true
				}
			}
		}
		if requiredSet[types.FieldOrderID] {
			if _, ok := rec[types.FieldOrderID]; !ok {
				if date, ok := rec.Time(types.FieldDate); ok {
					rec[types.FieldOrderID] = SynthesizeOrderID(date, i)
					synthesized[types.FieldOrderID] = true
				} else {
					missing[types.FieldOrderID] = true
				}
			}
		}
		for _, req := range required {
			if _, ok := rec[req]; !ok && !synthesizable(req) {
				missing[req] = true
			}
		}

		out = append(out, rec)
	}

	meta.SynthesizedFields = sortedKeys(synthesized)
	if len(missing) > 0 {
		meta.MissingRequiredFields = sortedKeys(missing)
		log.WithField("missing", meta.MissingRequiredFields).Warn("required values unresolvable, dataset rejected")
		return nil, meta
	}

	meta.Success = true
	log.WithFields(logrus.Fields{
		"normalized_rows": len(out),
		"synthesized":     meta.SynthesizedFields,
	}).Info("normalization complete")
	return out, meta
}

// Result packs rows and metadata into the outward contract shape.
func Result(rows []types.Record, meta types.MappingMetadata) types.NormalizationResult {
	return types.NormalizationResult{
		Success:               meta.Success,
		DetectedFormat:        string(meta.DetectedFormat),
		NormalizedRows:        rows,
		MappedHeaders:         meta.MappedHeaders,
		UnmappedHeaders:       meta.UnmappedHeaders,
		MissingRequiredFields: meta.MissingRequiredFields,
		SynthesizedFields:     meta.SynthesizedFields,
	}
}

func synthesizable(canonical string) bool {
	return canonical == types.FieldCustomerID || canonical == types.FieldOrderID
}

func hasColumn(colFor map[string]int, canonical string) bool {
	_, ok := colFor[canonical]
	return ok
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
