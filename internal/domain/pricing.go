package domain

// Currency resolves the order currency the way the order service expects:
// meta.currency first, then the top-level currency meta, then the first
// entity's currency, defaulting to USD.
func (o *Order) Currency() string {
	if c := o.MetaString("currency"); c != "" {
		return c
	}
	if o != nil {
		for _, e := range o.Entities {
			if e.Currency != "" {
				return e.Currency
			}
		}
	}
	return "USD"
}

// EntitiesSubtotal sums cargo item prices in minor units.
func (o *Order) EntitiesSubtotal() int64 {
	if o == nil {
		return 0
	}
	var sum int64
	for _, e := range o.Entities {
		sum += e.Price
	}
	return sum
}

// DeliveryFee returns the purchase-rate amount when present, otherwise the
// delivery_fee meta value.
func (o *Order) DeliveryFee() int64 {
	if o == nil {
		return 0
	}
	if o.PurchaseRate != nil {
		return o.PurchaseRate.Amount
	}
	if v, ok := o.Meta["delivery_fee"].(float64); ok {
		return int64(v)
	}
	return 0
}

// Total is entities subtotal plus delivery fee, in minor units.
func (o *Order) Total() int64 {
	return o.EntitiesSubtotal() + o.DeliveryFee()
}
