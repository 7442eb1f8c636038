package routes

// SigninPath is where the guard sends visitors who lack access.
const SigninPath = "/login"

// Default returns the storefront's route tree.
func Default() []Descriptor {
	return []Descriptor{
		{Name: "home", Path: "/"},
		{Name: "catalog", Path: "/catalog"},
		{Name: "category", Path: "/catalog/:categoryId"},
		{Name: "product", Path: "/products/:id"},
		{Name: "signin", Path: SigninPath, Access: AccessNone},
		{Name: "register", Path: "/register", Access: AccessNone},

		{Name: "profile", Path: "/profile", Access: AccessRequiresAuth},
		{Name: "cart", Path: "/cart", Access: AccessRequiresAuth},
		{
			Path:   "/orders",
			Access: AccessRequiresAuth,
			Children: []Descriptor{
				{Name: "orders", Path: ""},
				{Name: "order", Path: ":id"},
			},
		},

		{
			Path:   "/admin",
			Access: AccessRequiresAdmin,
			Children: []Descriptor{
				{Name: "admin", Path: ""},
				{Name: "admin-categories", Path: "categories"},
				{Name: "admin-products", Path: "products"},
				{Name: "admin-product-edit", Path: "products/:id"},
				{Name: "admin-discounts", Path: "discounts"},
				{Name: "admin-users", Path: "users"},
				{Name: "admin-orders", Path: "orders"},
				{Name: "admin-order", Path: "orders/:id"},
				{Name: "admin-sliders", Path: "sliders"},
				{Name: "admin-images", Path: "images"},
				{Name: "admin-parser", Path: "parser"},
			},
		},

		{Name: "not-found", Path: "/*"},
	}
}
