package streams

import "github.com/datastitch/tap-amazon-sp/pkg/singer"

// moneySchema is the shared {CurrencyCode, Amount} shape.
func moneySchema() *singer.Schema {
	return singer.Object(map[string]*singer.Schema{
		"CurrencyCode": singer.String(),
		"Amount":       singer.String(),
	})
}

func ordersSchema() *singer.Schema {
	return &singer.Schema{
		Type: "object",
		Properties: map[string]*singer.Schema{
			"AmazonOrderId":                singer.String(),
			"SellerOrderId":                singer.String(),
			"PurchaseDate":                 singer.DateTime(),
			"LastUpdateDate":               singer.DateTime(),
			"OrderStatus":                  singer.String(),
			"FulfillmentChannel":           singer.String(),
			"SalesChannel":                 singer.String(),
			"ShipServiceLevel":             singer.String(),
			"OrderTotal":                   moneySchema(),
			"NumberOfItemsShipped":         singer.Integer(),
			"NumberOfItemsUnshipped":       singer.Integer(),
			"PaymentMethod":                singer.String(),
			"PaymentMethodDetails":         singer.Array(singer.String()),
			"MarketplaceId":                singer.String(),
			"ShipmentServiceLevelCategory": singer.String(),
			"OrderType":                    singer.String(),
			"EarliestShipDate":             singer.DateTime(),
			"LatestShipDate":               singer.DateTime(),
			"EarliestDeliveryDate":         singer.DateTime(),
			"LatestDeliveryDate":           singer.DateTime(),
			"IsBusinessOrder":              singer.Boolean(),
			"IsPrime":                      singer.Boolean(),
			"IsPremiumOrder":               singer.Boolean(),
			"IsGlobalExpressEnabled":       singer.Boolean(),
			"IsReplacementOrder":           singer.Boolean(),
			"IsSoldByAB":                   singer.Boolean(),
			"IsISPU":                       singer.Boolean(),
			"ShippingAddress": singer.Object(map[string]*singer.Schema{
				"City":          singer.String(),
				"StateOrRegion": singer.String(),
				"PostalCode":    singer.String(),
				"CountryCode":   singer.String(),
			}),
			"BuyerInfo": singer.Object(map[string]*singer.Schema{
				"BuyerEmail": singer.String(),
				"BuyerName":  singer.String(),
			}),
		},
	}
}

func orderItemsSchema() *singer.Schema {
	return &singer.Schema{
		Type: "object",
		Properties: map[string]*singer.Schema{
			"AmazonOrderId":       singer.String(),
			"OrderLastUpdateDate": singer.DateTime(),
			"OrderItemId":         singer.String(),
			"ASIN":                singer.String(),
			"SellerSKU":           singer.String(),
			"Title":               singer.String(),
			"QuantityOrdered":     singer.Integer(),
			"QuantityShipped":     singer.Integer(),
			"ItemPrice":           moneySchema(),
			"ItemTax":             moneySchema(),
			"ShippingPrice":       moneySchema(),
			"ShippingTax":         moneySchema(),
			"ShippingDiscount":    moneySchema(),
			"PromotionDiscount":   moneySchema(),
			"PromotionIds":        singer.Array(singer.String()),
			"IsGift":              singer.String(),
			"ConditionId":         singer.String(),
			"ConditionSubtypeId":  singer.String(),
			"ConditionNote":       singer.String(),
			"ProductInfo": singer.Object(map[string]*singer.Schema{
				"NumberOfItems": singer.String(),
			}),
		},
	}
}

func salesSchema() *singer.Schema {
	return &singer.Schema{
		Type: "object",
		Properties: map[string]*singer.Schema{
			"interval":         singer.String(),
			"intervalStart":    singer.DateTime(),
			"intervalEnd":      singer.DateTime(),
			"unitCount":        singer.Integer(),
			"orderItemCount":   singer.Integer(),
			"orderCount":       singer.Integer(),
			"averageUnitPrice": singer.Object(map[string]*singer.Schema{
				"amount":       singer.String(),
				"currencyCode": singer.String(),
			}),
			"totalSales": singer.Object(map[string]*singer.Schema{
				"amount":       singer.String(),
				"currencyCode": singer.String(),
			}),
		},
	}
}
