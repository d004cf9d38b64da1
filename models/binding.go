package models

// Binding ties one upsert route to its collection and natural key.
type Binding struct {
	Route      string
	Collection string
	KeyField   string
	// Sensitive keys are never logged or published.
	Sensitive      bool
	UpdatedMessage string
	CreatedMessage string
}

const (
	DatabaseName = "team4DB"

	ProductsCollection     = "products"
	ShopperCollection      = "shopper"
	ShoppingCartCollection = "shoppingCart"
	ShippingCollection     = "shipping"
	BillingCollection      = "billing"

	ShoppingCartRoute = "shoppingCart"

	CartCreatedMessage = "Shopping cart created and inserted successfully."

	RedactedValue = "[redacted]"
)

var (
	ProductBinding = Binding{
		Route:          "product",
		Collection:     ProductsCollection,
		KeyField:       "productID",
		UpdatedMessage: "Product updated successfully.",
		CreatedMessage: "Product created and inserted successfully.",
	}

	// ShopperBinding is keyed on the shopper's plaintext password.
	ShopperBinding = Binding{
		Route:          "shopper",
		Collection:     ShopperCollection,
		KeyField:       "ShopperPassword",
		Sensitive:      true,
		UpdatedMessage: "Shopper updated successfully.",
		CreatedMessage: "Shopper created and inserted successfully.",
	}

	ShippingBinding = Binding{
		Route:          "shipping",
		Collection:     ShippingCollection,
		KeyField:       "Address",
		UpdatedMessage: "Shipping Info updated successfully.",
		CreatedMessage: "Shipping info created and inserted successfully.",
	}

	BillingBinding = Binding{
		Route:          "billing",
		Collection:     BillingCollection,
		KeyField:       "Name",
		UpdatedMessage: "Billing Info updated successfully.",
		CreatedMessage: "Billing info created and inserted successfully.",
	}
)

// Bindings returns every upsert binding in route registration order.
func Bindings() []Binding {
	return []Binding{ProductBinding, ShopperBinding, ShippingBinding, BillingBinding}
}

// BindingForRoute looks a binding up by its route name, without the slash.
func BindingForRoute(route string) (Binding, bool) {
	for _, b := range Bindings() {
		if b.Route == route {
			return b, true
		}
	}
	return Binding{}, false
}

// Message returns the success message for an update or an insert.
func (b Binding) Message(created bool) string {
	if created {
		return b.CreatedMessage
	}
	return b.UpdatedMessage
}

// LogKey returns the key value safe for logs and events.
func (b Binding) LogKey(key interface{}) interface{} {
	if b.Sensitive {
		return RedactedValue
	}
	return key
}

// Collections lists every collection the gateway writes to.
func Collections() []string {
	return []string{
		ProductsCollection,
		ShopperCollection,
		ShoppingCartCollection,
		ShippingCollection,
		BillingCollection,
	}
}
