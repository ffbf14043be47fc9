package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthMiddleware_WithValidCookie(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		email, ok := GetUserEmailFromContext(r.Context())
		if !ok {
			t.Fatalf("user email not in context")
		}
		if email != "user@example.com" {
			t.Fatalf("user email from context = %q, want user@example.com", email)
		}
		role, ok := GetUserRoleFromContext(r.Context())
		if !ok || role != "User" {
			t.Fatalf("user role from context = %q, want User", role)
		}
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/protected", nil)

	if err := m.SetAuthCookie(w, "user@example.com", "User"); err != nil {
		t.Fatalf("SetAuthCookie error: %v", err)
	}
	res := w.Result()
	resCookies := res.Cookies()
	if len(resCookies) == 0 {
		t.Fatalf("no cookies set by SetAuthCookie")
	}

	r.AddCookie(resCookies[0])

	handler := m.Middleware(next)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_WithoutCookie(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/protected", nil)

	handler := m.Middleware(next)
	handler.ServeHTTP(w, r)

	res := w.Result()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_TamperedToken(t *testing.T) {
	issuer := NewAuthMiddleware("test-secret")
	verifier := NewAuthMiddleware("other-secret")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	w := httptest.NewRecorder()
	if err := issuer.SetAuthCookie(w, "user@example.com", "Admin"); err != nil {
		t.Fatalf("SetAuthCookie error: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.AddCookie(w.Result().Cookies()[0])

	rec := httptest.NewRecorder()
	verifier.Middleware(next).ServeHTTP(rec, r)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestRequireRole(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	protected := m.Middleware(m.RequireRole("Admin")(next))

	w := httptest.NewRecorder()
	if err := m.SetAuthCookie(w, "user@example.com", "User"); err != nil {
		t.Fatalf("SetAuthCookie error: %v", err)
	}
	userCookie := w.Result().Cookies()[0]

	r := httptest.NewRequest(http.MethodGet, "/admin", nil)
	r.AddCookie(userCookie)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, r)

	if rec.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("status for User role = %d, want %d", rec.Result().StatusCode, http.StatusForbidden)
	}
	if called {
		t.Fatalf("next handler must not run for wrong role")
	}

	w = httptest.NewRecorder()
	if err := m.SetAuthCookie(w, "admin@example.com", "Admin"); err != nil {
		t.Fatalf("SetAuthCookie error: %v", err)
	}
	adminCookie := w.Result().Cookies()[0]

	r = httptest.NewRequest(http.MethodGet, "/admin", nil)
	r.AddCookie(adminCookie)
	protected.ServeHTTP(httptest.NewRecorder(), r)

	if !called {
		t.Fatalf("next handler was not called for Admin role")
	}
}
