// Package schema holds the static alias registry mapping raw POS column
// names onto canonical concepts, and the first-match column resolver.
//
// The tables cover exports from Square, Lightspeed, Shopify POS, NCR,
// Oracle MICROS, QuickBooks POS, Clover, Revel, Toast and similar systems.
// They are compiled constants: nothing mutates them at runtime.
package schema

// AliasGroup is a named set of raw-name fragments considered synonymous with
// one canonical concept. Fragment order is priority order.
type AliasGroup struct {
	Concept string
	Aliases []string
}

// Canonical field names, in the fixed order of the 8-field canonical schema.
const (
	FieldTimestamp  = "timestamp"
	FieldProductID  = "product_id"
	FieldQty        = "qty"
	FieldTotal      = "total"
	FieldStoreID    = "store_id"
	FieldCategory   = "category"
	FieldPromoFlag  = "promo_flag"
	FieldExpiryDate = "expiry_date"
)

// Canonical maps each of the 8 canonical fields to its accepted raw-name
// fragments. The canonicalizer resolves every field independently against
// this table.
var Canonical = []AliasGroup{
	{FieldTimestamp, []string{"timestamp", "date", "sale_date", "created_at"}},
	{FieldProductID, []string{"sku", "barcode", "plu", "product_id", "item_code"}},
	{FieldQty, []string{"qty", "quantity", "units", "pieces"}},
	{FieldTotal, []string{"total", "amount", "line_total", "sales_amount"}},
	{FieldStoreID, []string{"store_id", "branch", "location", "outlet_id"}},
	{FieldCategory, []string{"category", "department", "cat", "family"}},
	{FieldPromoFlag, []string{"promo", "promotion", "is_promo", "discount_code"}},
	{FieldExpiryDate, []string{"expiry_date", "best_before", "use_by", "expiration"}},
}

// Metric concepts used by the KPI aggregator. These are wider than the
// canonical schema: loss, customer, price and cost have no canonical field
// but feed shrinkage, reach and margin KPIs.
const (
	MetricSKU         = "sku"
	MetricQty         = "qty"
	MetricExpiry      = "expiry"
	MetricPromo       = "promo"
	MetricSales       = "sales"
	MetricTransaction = "transaction"
	MetricStore       = "store"
	MetricCategory    = "category"
	MetricLoss        = "loss"
	MetricCustomer    = "customer"
	MetricPrice       = "price"
	MetricCost        = "cost"
)

var Metric = []AliasGroup{
	{MetricSKU, []string{"sku", "barcode", "item_code", "plu", "product_id"}},
	{MetricQty, []string{"qty", "quantity", "units", "stock", "quantity_on_hand"}},
	{MetricExpiry, []string{"expiry_date", "exp", "best_before", "use_by", "expiration"}},
	{MetricPromo, []string{"promo", "promotion", "discount_code", "campaign", "is_promo"}},
	{MetricSales, []string{"total_line", "net_amount", "line_total", "amount", "sales_amount", "total"}},
	{MetricTransaction, []string{"transaction_id", "receipt_no", "ticket_no", "order_id"}},
	{MetricStore, []string{"store_id", "branch_code", "location_id", "outlet_id"}},
	{MetricCategory, []string{"category", "department", "cat", "sub_category"}},
	{MetricLoss, []string{"loss_qty", "waste_qty", "shrinkage_qty", "damaged_qty"}},
	{MetricCustomer, []string{"customer_id", "loyalty_id", "phone"}},
	{MetricPrice, []string{"unit_price", "price", "sell_price"}},
	{MetricCost, []string{"cost_price", "supply_price", "unit_cost"}},
}

// Profile is a named industry vertical holding an ordered collection of
// alias groups, scored by the classifier.
type Profile struct {
	Industry string
	Groups   []AliasGroup
}

// Profile names.
const (
	IndustrySupermarket   = "supermarket"
	IndustryHealthcare    = "healthcare"
	IndustryWholesale     = "wholesale"
	IndustryManufacturing = "manufacturing"
	IndustryRetail        = "retail"
)

// Profiles are the classification scoring set. Supermarket carries the
// widest alias coverage; retail is the deliberately thin fallback that
// supermarket refines (see the classifier tie-break).
var Profiles = []Profile{
	{
		Industry: IndustrySupermarket,
		Groups: []AliasGroup{
			{"sku", []string{"barcode", "item_code", "plu", "product_id", "product_code", "item_id",
				"sku", "goods_code", "article_number", "artnum", "sale_id", "item_barcode",
				"product_barcode", "item_sku", "goods_id", "inventory_id", "merchandise_code"}},
			{"qty", []string{"qty", "quantity", "units", "stock", "quantity_sold", "qty_sold",
				"item_count", "unit_count", "pieces", "pcs", "amount_sold",
				"sold_qty", "sales_qty", "sold_quantity", "transaction_qty"}},
			{"price", []string{"unit_price", "price", "sell_price", "unit_sell", "selling_price",
				"item_price", "product_price", "rate", "unit_cost", "cost_price",
				"retail_price", "sales_price", "price_each", "unit_rate"}},
			{"total", []string{"total", "total_line", "line_total", "net_amount", "amount", "sales_amount",
				"value", "extended_price", "total_price", "gross_amount", "total_amount",
				"line_value", "transaction_total", "subtotal", "total_sales"}},
			{"transaction", []string{"transaction_id", "receipt_no", "ticket_no", "order_id", "sale_id",
				"tran_id", "trans_id", "receipt_number", "invoice_no", "bill_no",
				"ticket_id", "session_id", "pos_transaction_id", "order_number"}},
			{"store", []string{"store_id", "branch_code", "location_id", "outlet_id", "shop_id",
				"branch_id", "terminal_id", "pos_id", "workstation_id", "station_id",
				"store_code", "site_id", "warehouse_id", "depot_id"}},
			{"category", []string{"category", "cat", "department", "class", "sub_category", "group_name",
				"product_group", "family", "section", "division", "category_name",
				"item_category", "product_category", "group_code"}},
			{"expiry", []string{"expiry_date", "exp", "best_before", "use_by", "expiration_date",
				"exp_date", "best_before_date", "shelf_life_date", "valid_until",
				"expires_on", "expiry", "expiration"}},
			{"promo", []string{"promo", "promotion", "discount_code", "campaign", "is_promo",
				"promotion_code", "disc_code", "offer_code", "special_code",
				"promo_flag", "promotion_flag", "discount_flag", "is_discount"}},
			{"loss", []string{"loss_qty", "waste_qty", "shrinkage_qty", "damaged_qty", "spoiled_qty",
				"expired_qty", "write_off_qty", "shrinkage", "waste", "damaged",
				"loss", "shrinkage_units", "waste_units", "damaged_units", "spoiled_units"}},
		},
	},
	{
		Industry: IndustryHealthcare,
		Groups: []AliasGroup{
			{"patient", []string{"patient_id", "patient_no", "mrn", "medical_record_number"}},
			{"treatment", []string{"treatment_cost", "procedure_cost", "bill_amount", "invoice_amount"}},
			{"diagnosis", []string{"diagnosis_code", "icd_code", "condition"}},
			{"drug", []string{"drug_name", "medication", "prescription"}},
		},
	},
	{
		Industry: IndustryWholesale,
		Groups: []AliasGroup{
			{"sku", []string{"sku", "item_code"}},
			{"wholesale_price", []string{"wholesale_price", "bulk_price", "trade_price"}},
			{"moq", []string{"moq", "min_order_qty", "minimum_order"}},
		},
	},
	{
		Industry: IndustryManufacturing,
		Groups: []AliasGroup{
			{"production", []string{"production_volume", "units_produced", "output_qty"}},
			{"defect", []string{"defect_rate", "rejection_rate", "scrap_qty"}},
			{"machine", []string{"machine_id", "line_id", "station_id"}},
		},
	},
	{
		Industry: IndustryRetail,
		Groups: []AliasGroup{
			{"product", []string{"product_name", "product_id"}},
			{"sale", []string{"sale_date", "sale_amount"}},
		},
	},
}

// MetricGroup returns the metric alias group for a concept name.
func MetricGroup(concept string) (AliasGroup, bool) {
	for _, g := range Metric {
		if g.Concept == concept {
			return g, true
		}
	}
	return AliasGroup{}, false
}
