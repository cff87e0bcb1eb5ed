package types

import "time"

// SourceFormat identifies which upstream export a dataset came from.
type SourceFormat string

const (
	FormatStorefront SourceFormat = "storefront" // product-level storefront export
	FormatProcessor  SourceFormat = "processor"  // payment-processor export (fee/net columns)
	FormatUnknown    SourceFormat = "unknown"
)

// Canonical field names. The mapping table in internal/schema is the single
// source of truth for which headers feed each of these.
const (
	FieldCustomerID     = "customer_id"
	FieldOrderID        = "order_id"
	FieldDate           = "date"
	FieldTime           = "time"
	FieldProductName    = "product_name"
	FieldProductType    = "product_type"
	FieldProductPrice   = "product_price"
	FieldQuantity       = "quantity"
	FieldSubtotal       = "subtotal"
	FieldDiscountAmount = "discount_amount"
	FieldTotalAmount    = "total_amount"
	FieldTaxAmount      = "tax_amount"
	FieldCustomerName   = "customer_name"
	FieldCustomerEmail  = "customer_email"
	FieldPaymentStatus  = "payment_status"
	FieldPaymentMethod  = "payment_method"
	FieldReferralSource = "referral_source"
	FieldAmountRefunded = "amount_refunded"
	FieldFee            = "fee"
	FieldNetAmount      = "net_amount"
)

// Record is one normalized row keyed by canonical field name. Values are
// string, float64, int64 or time.Time; a missing/nulled field is simply
// absent from the map.
type Record map[string]any

func (r Record) String(field string) (string, bool) {
	v, ok := r[field].(string)
	return v, ok
}

func (r Record) Float(field string) (float64, bool) {
	v, ok := r[field].(float64)
	return v, ok
}

func (r Record) Int(field string) (int64, bool) {
	v, ok := r[field].(int64)
	return v, ok
}

func (r Record) Time(field string) (time.Time, bool) {
	v, ok := r[field].(time.Time)
	return v, ok
}

// MappingMetadata describes one normalization pass. It is built once per
// dataset and not mutated afterwards; both the HTTP layer (user-facing
// errors) and analytics (fee fields are optional for storefront data)
// consume it.
type MappingMetadata struct {
	DetectedFormat        SourceFormat      `json:"detected_format"`
	MappedHeaders         map[string]string `json:"mapped_headers"`
	UnmappedHeaders       []string          `json:"unmapped_headers"`
	MissingRequiredFields []string          `json:"missing_required_fields"`
	SynthesizedFields     []string          `json:"synthesized_fields"`
	Success               bool              `json:"success"`
}

// Mapped reports whether any original header fed the given canonical field.
func (m MappingMetadata) Mapped(canonical string) bool {
	for _, c := range m.MappedHeaders {
		if c == canonical {
			return true
		}
	}
	return false
}

// NormalizationResult is the outward contract of the normalization step.
type NormalizationResult struct {
	Success               bool              `json:"success"`
	DetectedFormat        string            `json:"detected_format"`
	NormalizedRows        []Record          `json:"normalized_rows"`
	MappedHeaders         map[string]string `json:"mapped_headers"`
	UnmappedHeaders       []string          `json:"unmapped_headers"`
	MissingRequiredFields []string          `json:"missing_required_fields"`
	SynthesizedFields     []string          `json:"synthesized_fields"`
}
