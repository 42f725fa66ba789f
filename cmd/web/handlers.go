package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/checkout"
	"storefront/internal/dashboard"
	"storefront/internal/models"
	"storefront/internal/repository"
)

func objectIDParam(r *http.Request) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(r.URL.Query().Get(":id"))
}

// --- AUTH HANDLERS ---

func (app *application) register(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")

	user, err := app.users.Insert(r.Context(), email, password, "customer")
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			app.writeJSON(w, http.StatusUnprocessableEntity, envelope{"errors": models.FieldErrors{"email": "already registered"}})
			return
		}
		app.writeError(w, r, err)
		return
	}
	app.signIn(w, r, user)
}

func (app *application) login(w http.ResponseWriter, r *http.Request) {
	user, err := app.users.Authenticate(r.Context(), r.FormValue("email"), r.FormValue("password"))
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCredentials) {
			app.writeJSON(w, http.StatusUnauthorized, envelope{"error": "invalid credentials"})
			return
		}
		app.writeError(w, r, err)
		return
	}
	app.signIn(w, r, user)
}

// signIn establishes the session and folds any guest cart into the user's
// persisted cart before the first authenticated request can see it.
func (app *application) signIn(w http.ResponseWriter, r *http.Request, user *models.User) {
	ctx := r.Context()
	if err := app.sessions.RenewToken(ctx); err != nil {
		app.writeError(w, r, err)
		return
	}
	if err := app.consolidator.Consolidate(ctx, app.guestCart, user.ID); err != nil {
		app.writeError(w, r, err)
		return
	}
	app.sessions.Put(ctx, "authenticatedUserID", user.ID.Hex())
	app.sessions.Put(ctx, "userEmail", user.Email)
	app.sessions.Put(ctx, "userRole", user.Role)

	app.writeJSON(w, http.StatusOK, envelope{"email": user.Email, "role": user.Role})
}

func (app *application) logout(w http.ResponseWriter, r *http.Request) {
	if err := app.sessions.Destroy(r.Context()); err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"ok": true})
}

// --- CATALOG HANDLERS ---

func (app *application) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ProductFilter{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Brand:    q.Get("brand"),
		Sort:     q.Get("sort"),
	}
	if v := q.Get("min_price"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			filter.MinPrice = &d
		}
	}
	if v := q.Get("max_price"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			filter.MaxPrice = &d
		}
	}

	products, err := app.catalog.List(r.Context(), filter)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"products": products})
}

func (app *application) showProduct(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r)
	if err != nil {
		app.writeError(w, r, models.ErrNotFound)
		return
	}
	p, err := app.catalog.Priced(r.Context(), id)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	reviews, err := app.catalog.Reviews(r.Context(), id)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"product": p, "reviews": reviews})
}

func (app *application) addReview(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r)
	if err != nil {
		app.writeError(w, r, models.ErrNotFound)
		return
	}
	rating, _ := strconv.Atoi(r.FormValue("rating"))
	err = app.catalog.AddReview(r.Context(), id, app.currentEmail(r), rating, r.FormValue("comment"))
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"ok": true})
}

// --- CART HANDLERS ---

func (app *application) showCart(w http.ResponseWriter, r *http.Request) {
	lines, err := app.cartSource(r).Items(r.Context())
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	app.writeJSON(w, http.StatusOK, envelope{"items": lines, "total": total})
}

func (app *application) addToCart(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(r.FormValue("product_id"))
	if err != nil {
		app.writeError(w, r, models.ErrNotFound)
		return
	}
	qty, err := strconv.Atoi(r.FormValue("quantity"))
	if err != nil || qty < 1 {
		qty = 1
	}
	src := app.cartSource(r)
	if err := src.Add(r.Context(), id, qty); err != nil {
		app.writeError(w, r, err)
		return
	}
	lines, err := src.Items(r.Context())
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	app.writeJSON(w, http.StatusOK, envelope{"ok": true, "count": count})
}

func (app *application) updateCartQuantity(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r)
	if err != nil {
		app.writeError(w, r, models.ErrNotFound)
		return
	}
	qty, _ := strconv.Atoi(r.FormValue("quantity"))
	if err := app.cartSource(r).SetQuantity(r.Context(), id, qty); err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"ok": true})
}

func (app *application) removeFromCart(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r)
	if err != nil {
		app.writeError(w, r, models.ErrNotFound)
		return
	}
	if err := app.cartSource(r).Remove(r.Context(), id); err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"ok": true})
}

func (app *application) processCheckout(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	if e := app.currentEmail(r); e != "" {
		email = e
	}
	info := checkout.ShippingInfo{
		Email:           email,
		FullName:        r.FormValue("full_name"),
		Phone:           r.FormValue("phone"),
		Province:        r.FormValue("province"),
		District:        r.FormValue("district"),
		Ward:            r.FormValue("ward"),
		SpecificAddress: r.FormValue("specific_address"),
		PaymentMethod:   r.FormValue("payment_method"),
	}
	orderID, err := app.checkout.Checkout(r.Context(), app.cartSource(r), info)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusCreated, envelope{"orderId": orderID.Hex()})
}

// --- BUYER ORDER HANDLERS ---

func (app *application) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := app.orders.OrdersFor(r.Context(), app.currentEmail(r))
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"orders": orders})
}

func (app *application) showOrder(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r)
	if err != nil {
		app.writeError(w, r, models.ErrNotFound)
		return
	}
	o, err := app.orders.GetOwned(r.Context(), id, app.currentEmail(r))
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"order": o})
}

func (app *application) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r)
	if err != nil {
		app.writeError(w, r, models.ErrNotFound)
		return
	}
	if err := app.orders.Cancel(r.Context(), id, app.currentEmail(r)); err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"ok": true})
}

func (app *application) requestReturn(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r)
	if err != nil {
		app.writeError(w, r, models.ErrNotFound)
		return
	}
	if err := app.orders.RequestReturn(r.Context(), id, app.currentEmail(r), r.FormValue("reason")); err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"ok": true})
}

// --- ADMIN HANDLERS ---

func parseDay(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

func (app *application) dashboardData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var from, to time.Time
	if v := q.Get("from"); v != "" {
		t, err := parseDay(v)
		if err != nil {
			app.writeError(w, r, models.FieldErrors{"from": "expected YYYY-MM-DD"})
			return
		}
		from = t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseDay(v)
		if err != nil {
			app.writeError(w, r, models.FieldErrors{"to": "expected YYYY-MM-DD"})
			return
		}
		to = t
	}
	granularity := dashboard.Daily
	if q.Get("granularity") == string(dashboard.Monthly) {
		granularity = dashboard.Monthly
	}

	report, err := app.dashboard.Report(r.Context(), from, to, granularity)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	inventory, err := app.dashboard.InventorySummary(r.Context())
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"report": report, "inventory": inventory})
}

func (app *application) adminListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := app.store.ListOrders(r.Context())
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"orders": orders})
}

func (app *application) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r)
	if err != nil {
		app.writeError(w, r, models.ErrNotFound)
		return
	}
	if err := app.orders.SetStatus(r.Context(), id, models.OrderStatus(r.FormValue("status"))); err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"ok": true})
}

func (app *application) resolveReturn(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r)
	if err != nil {
		app.writeError(w, r, models.ErrNotFound)
		return
	}
	approve := r.FormValue("approve") == "true"
	if err := app.orders.ResolveReturn(r.Context(), id, approve); err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"ok": true})
}

func (app *application) productFromForm(r *http.Request, p *models.Product) error {
	fe := models.FieldErrors{}
	if name := r.FormValue("name"); name != "" {
		p.Name = name
	} else if p.Name == "" {
		fe["name"] = "this field is required"
	}
	if v := r.FormValue("price"); v != "" {
		price, err := decimal.NewFromString(v)
		if err != nil || price.IsNegative() {
			fe["price"] = "expected a non-negative amount"
		} else {
			p.Price = price
		}
	}
	if v := r.FormValue("stock"); v != "" {
		stock, err := strconv.Atoi(v)
		if err != nil {
			fe["stock"] = "expected a whole number"
		} else {
			p.Stock = stock
		}
	}
	if v := r.FormValue("description"); v != "" {
		p.Description = v
	}
	if v := r.FormValue("category"); v != "" {
		p.Category = v
	}
	if v := r.FormValue("brand"); v != "" {
		p.Brand = v
	}
	if len(fe) > 0 {
		return fe
	}
	return nil
}

// savedImage stores an uploaded image, if any, and returns its URL path.
// Replacing an existing image also deletes the superseded file.
func (app *application) savedImage(r *http.Request, oldURL string) (string, error) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer file.Close()
	if oldURL != "" {
		return app.images.Replace(oldURL, header.Filename, file)
	}
	return app.images.Save(header.Filename, file)
}

func (app *application) createProduct(w http.ResponseWriter, r *http.Request) {
	var p models.Product
	if err := app.productFromForm(r, &p); err != nil {
		app.writeError(w, r, err)
		return
	}
	url, err := app.savedImage(r, "")
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	p.ImageURL = url
	if err := app.store.InsertProduct(r.Context(), &p); err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusCreated, envelope{"id": p.ID.Hex()})
}

func (app *application) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r)
	if err != nil {
		app.writeError(w, r, models.ErrNotFound)
		return
	}
	p, err := app.store.GetProduct(r.Context(), id)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	if err := app.productFromForm(r, p); err != nil {
		app.writeError(w, r, err)
		return
	}
	url, err := app.savedImage(r, p.ImageURL)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	if url != "" {
		p.ImageURL = url
	}
	if err := app.store.UpdateProduct(r.Context(), p); err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"ok": true})
}

func (app *application) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r)
	if err != nil {
		app.writeError(w, r, models.ErrNotFound)
		return
	}
	p, err := app.store.GetProduct(r.Context(), id)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	if err := app.store.DeleteProduct(r.Context(), id); err != nil {
		app.writeError(w, r, err)
		return
	}
	app.images.Remove(p.ImageURL)
	app.writeJSON(w, http.StatusOK, envelope{"ok": true})
}

func (app *application) updateStock(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r)
	if err != nil {
		app.writeError(w, r, models.ErrNotFound)
		return
	}
	qty, err := strconv.Atoi(r.FormValue("quantity"))
	if err != nil {
		app.writeError(w, r, models.FieldErrors{"quantity": "expected a whole number"})
		return
	}
	// manual stock edits clamp at zero
	if qty < 0 {
		qty = 0
	}
	if err := app.store.SetStock(r.Context(), id, qty); err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"ok": true})
}

func (app *application) listPromotions(w http.ResponseWriter, r *http.Request) {
	promos, err := app.store.ListPromotions(r.Context())
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"promotions": promos})
}

func (app *application) createPromotion(w http.ResponseWriter, r *http.Request) {
	fe := models.FieldErrors{}
	name := r.FormValue("name")
	if name == "" {
		fe["name"] = "this field is required"
	}
	percent, err := strconv.Atoi(r.FormValue("discount_percent"))
	if err != nil || percent < 0 || percent > 100 {
		fe["discountPercent"] = "expected a percentage between 0 and 100"
	}
	start, err := parseDay(r.FormValue("start_date"))
	if err != nil {
		fe["startDate"] = "expected YYYY-MM-DD"
	}
	end, err := parseDay(r.FormValue("end_date"))
	if err != nil {
		fe["endDate"] = "expected YYYY-MM-DD"
	}
	if len(fe) > 0 {
		app.writeError(w, r, fe)
		return
	}

	promo := &models.Promotion{
		Name:            name,
		Description:     r.FormValue("description"),
		DiscountPercent: percent,
		StartDate:       start,
		EndDate:         end,
		IsActive:        r.FormValue("active") != "false",
	}
	if err := app.store.InsertPromotion(r.Context(), promo); err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusCreated, envelope{"id": promo.ID.Hex()})
}

func (app *application) deletePromotion(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r)
	if err != nil {
		app.writeError(w, r, models.ErrNotFound)
		return
	}
	if err := app.promotions.Delete(r.Context(), id); err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"ok": true})
}

func (app *application) assignPromotion(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r)
	if err != nil {
		app.writeError(w, r, models.ErrNotFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		app.writeError(w, r, err)
		return
	}
	var productIDs []primitive.ObjectID
	for _, hex := range r.PostForm["product_ids"] {
		pid, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			app.writeError(w, r, models.FieldErrors{"productIds": "invalid product id " + hex})
			return
		}
		productIDs = append(productIDs, pid)
	}
	if err := app.promotions.Assign(r.Context(), id, productIDs); err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"ok": true})
}
