package models

// Offer is a business-authored request for creator content. The offer
// catalog is owned elsewhere; this core only reads it.
type Offer struct {
	ID           string                 `json:"id"`
	BusinessID   string                 `json:"businessId"`
	Title        string                 `json:"title"`
	BudgetMin    float64                `json:"budgetMin"`
	BudgetMax    float64                `json:"budgetMax"`
	Requirements map[string]interface{} `json:"requirements,omitempty"`
}

// ContentSpecs returns the content requirement block used by AI scoring,
// or an empty map when the offer has none.
func (o *Offer) ContentSpecs() map[string]interface{} {
	if o.Requirements == nil {
		return map[string]interface{}{}
	}
	if specs, ok := o.Requirements["content_specs"].(map[string]interface{}); ok {
		return specs
	}
	return map[string]interface{}{}
}
