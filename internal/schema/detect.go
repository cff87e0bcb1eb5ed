package schema

import "sales-insights-go/internal/types"

// DetectFormat classifies a dataset from its mapped header set alone, before
// required-ness is enforced (required fields differ per format). Cell values
// never participate in detection.
//
// A fee/refund column pair only exists in payment-processor exports; a
// product/amount pair marks the storefront export.
func DetectFormat(mapped map[string]string) types.SourceFormat {
	has := make(map[string]bool, len(mapped))
	for _, canonical := range mapped {
		has[canonical] = true
	}

	switch {
	case has[types.FieldAmountRefunded] && has[types.FieldFee]:
		return types.FormatProcessor
	case has[types.FieldProductName] && has[types.FieldTotalAmount]:
		return types.FormatStorefront
	default:
		return types.FormatUnknown
	}
}
