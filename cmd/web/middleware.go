package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/cart"
	"storefront/internal/checkout"
	"storefront/internal/models"
	"storefront/internal/order"
)

func (app *application) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.log.WithField("method", r.Method).WithField("path", r.URL.Path).Info("request")
		next.ServeHTTP(w, r)
	})
}

func (app *application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				app.log.WithField("panic", err).Error("recovered from panic")
				app.writeJSON(w, http.StatusInternalServerError, envelope{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (app *application) isAuthenticated(r *http.Request) bool {
	return app.sessions.Exists(r.Context(), "authenticatedUserID")
}

// currentUserID returns the signed-in user's id, or false for guests.
func (app *application) currentUserID(r *http.Request) (primitive.ObjectID, bool) {
	hex := app.sessions.GetString(r.Context(), "authenticatedUserID")
	if hex == "" {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

func (app *application) currentEmail(r *http.Request) string {
	return app.sessions.GetString(r.Context(), "userEmail")
}

// cartSource picks the cart variant for this request: persisted for a
// signed-in user, session-backed for a guest.
func (app *application) cartSource(r *http.Request) cart.Source {
	if id, ok := app.currentUserID(r); ok {
		return cart.ForUser(app.store, app.catalog, id)
	}
	return app.guestCart
}

func (app *application) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !app.isAuthenticated(r) {
			app.writeJSON(w, http.StatusUnauthorized, envelope{"error": "authentication required"})
			return
		}
		next(w, r)
	})
}

func (app *application) requireRole(role string, next http.HandlerFunc) http.Handler {
	return app.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		if app.sessions.GetString(r.Context(), "userRole") != role {
			app.writeJSON(w, http.StatusForbidden, envelope{"error": "forbidden"})
			return
		}
		next(w, r)
	})
}

type envelope map[string]interface{}

func (app *application) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		app.log.WithError(err).Error("writing response")
	}
}

// writeError maps core errors onto the HTTP surface.
func (app *application) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var fe models.FieldErrors
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		http.Redirect(w, r, "/cart", http.StatusSeeOther)
	case errors.As(err, &fe):
		app.writeJSON(w, http.StatusUnprocessableEntity, envelope{"errors": fe})
	case errors.Is(err, models.ErrNotFound):
		app.writeJSON(w, http.StatusNotFound, envelope{"error": "not found"})
	case errors.Is(err, order.ErrUnauthorized):
		app.writeJSON(w, http.StatusForbidden, envelope{"error": "forbidden"})
	case errors.Is(err, order.ErrIllegalTransition):
		app.writeJSON(w, http.StatusConflict, envelope{"error": err.Error()})
	default:
		app.log.WithError(err).Error("server error")
		app.writeJSON(w, http.StatusInternalServerError, envelope{"error": "internal server error"})
	}
}
