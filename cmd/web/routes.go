package main

import (
	"net/http"

	"github.com/bmizerany/pat"
)

func (app *application) routes() http.Handler {
	mux := pat.New()

	mux.Post("/auth/register", http.HandlerFunc(app.register))
	mux.Post("/auth/login", http.HandlerFunc(app.login))
	mux.Post("/auth/logout", app.requireAuth(app.logout))

	mux.Get("/products", http.HandlerFunc(app.listProducts))
	mux.Get("/products/:id", http.HandlerFunc(app.showProduct))
	mux.Post("/products/:id/reviews", app.requireAuth(app.addReview))

	mux.Get("/cart", http.HandlerFunc(app.showCart))
	mux.Post("/cart", http.HandlerFunc(app.addToCart))
	mux.Post("/cart/:id", http.HandlerFunc(app.updateCartQuantity))
	mux.Del("/cart/:id", http.HandlerFunc(app.removeFromCart))
	mux.Post("/checkout", http.HandlerFunc(app.processCheckout))

	mux.Get("/orders", app.requireAuth(app.listOrders))
	mux.Get("/orders/:id", app.requireAuth(app.showOrder))
	mux.Post("/orders/:id/cancel", app.requireAuth(app.cancelOrder))
	mux.Post("/orders/:id/return", app.requireAuth(app.requestReturn))

	mux.Get("/admin/dashboard", app.requireRole("admin", app.dashboardData))
	mux.Get("/admin/orders", app.requireRole("admin", app.adminListOrders))
	mux.Post("/admin/orders/:id/status", app.requireRole("admin", app.updateOrderStatus))
	mux.Post("/admin/orders/:id/return", app.requireRole("admin", app.resolveReturn))

	mux.Post("/admin/products", app.requireRole("admin", app.createProduct))
	mux.Post("/admin/products/:id", app.requireRole("admin", app.updateProduct))
	mux.Del("/admin/products/:id", app.requireRole("admin", app.deleteProduct))
	mux.Post("/admin/products/:id/stock", app.requireRole("admin", app.updateStock))

	mux.Get("/admin/promotions", app.requireRole("admin", app.listPromotions))
	mux.Post("/admin/promotions", app.requireRole("admin", app.createPromotion))
	mux.Del("/admin/promotions/:id", app.requireRole("admin", app.deletePromotion))
	mux.Post("/admin/promotions/:id/products", app.requireRole("admin", app.assignPromotion))

	root := http.NewServeMux()
	root.Handle("/", mux)
	root.Handle("/images/products/", http.StripPrefix("/images/products/", http.FileServer(http.Dir(app.images.Dir))))

	return app.sessions.LoadAndSave(app.logRequest(app.recoverPanic(root)))
}
