// Package http serves the litestore JSON API.
//
// Routes are grouped under /api. Account signup and login, share link info
// and share link redemption are public; everything else expects an
// "Authorization: Bearer <token>" header issued by /api/auth/login.
//
// # Errors
//
// Failures are written as JSON:
//
//	{"error": "not_found", "message": "Not found"}
//
// HandleError maps the sentinel errors of the litestore package to status
// codes: ErrNotFound 404, ErrConflict 409, ErrForbidden 403,
// ErrUnauthorized 401, ErrInvalidInput 400 and anything else 500. Denied
// share link redemptions report the denial reason as the error code.
//
// # Usage
//
//	handler := http.NewHandler(&http.HandlerConfig{Content: store.Handler()}, http.Services{
//	    Files:    files,
//	    Links:    links,
//	    Accounts: accounts,
//	    Tokens:   issuer,
//	})
//	srv := &nethttp.Server{Addr: ":8080", Handler: handler.Router()}
//
// Request bodies are validated with go-playground/validator before they reach
// the services.
package http
