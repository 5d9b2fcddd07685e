package httpserver

import (
	"errors"
	"net/http"

	appusers "github.com/bryanwahyu/heartscan/internal/application/users"
	domain "github.com/bryanwahyu/heartscan/internal/domain/users"
	"github.com/bryanwahyu/heartscan/internal/middleware"
)

// POST /login (email, password)
func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		r.pages.message(w, http.StatusBadRequest, messageView{Title: "Solicitud inválida", Color: colorError, LinkHref: "/login", LinkText: "Intentar de nuevo"})
		return
	}
	sess, err := r.users.Login(req.Context(), appusers.LoginCommand{
		Email:    req.PostForm.Get("email"),
		Password: req.PostForm.Get("password"),
	})
	if err != nil {
		status, view := loginFailure(err)
		if status >= 500 {
			r.log.Error("login failed", "error", err)
		}
		r.pages.message(w, status, view)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(r.opts.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, req, "/", http.StatusSeeOther)
}

func loginFailure(err error) (int, messageView) {
	v := messageView{Color: colorError, LinkHref: "/login", LinkText: "Intentar de nuevo"}
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		v.Title, v.Message = "Datos incompletos", "Email y contraseña son requeridos"
		return http.StatusBadRequest, v
	case errors.Is(err, domain.ErrInvalidCredentials):
		v.Title, v.Message = "Acceso denegado", "Email o contraseña incorrectos"
		return http.StatusUnauthorized, v
	default:
		v.Title, v.Message = "Error Interno", "Error del servidor"
		return http.StatusInternalServerError, v
	}
}

// GET /logout
func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	if c, err := req.Cookie(middleware.SessionCookie); err == nil {
		if err := r.users.Logout(req.Context(), c.Value); err != nil {
			r.log.Warn("logout", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, req, "/login", http.StatusFound)
}

// POST /registro (nombre_completo, email, password)
func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		r.pages.message(w, http.StatusBadRequest, messageView{Title: "Solicitud inválida", Color: colorError, LinkHref: "/registro", LinkText: "Intentar de nuevo"})
		return
	}
	_, err := r.users.Register(req.Context(), appusers.RegisterCommand{
		FullName: req.PostForm.Get("nombre_completo"),
		Email:    req.PostForm.Get("email"),
		Password: req.PostForm.Get("password"),
	})

	v := messageView{Color: colorError, LinkHref: "/registro", LinkText: "Intentar de nuevo"}
	status := http.StatusOK
	switch {
	case err == nil:
		v = messageView{Title: "✅ Registro exitoso", Color: colorOK, LinkHref: "/login", LinkText: "Ir a Login"}
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
		v.Title, v.Message = "Datos incompletos", "Todos los campos son requeridos; la contraseña debe tener al menos 6 caracteres."
	case errors.Is(err, domain.ErrEmailTaken):
		status = http.StatusConflict
		v.Title, v.Message = "Registro rechazado", "El email ya está registrado."
	default:
		status = http.StatusInternalServerError
		v.Title, v.Message = "Error Interno", "Error al registrar el usuario."
	}
	if rerr := r.pages.message(w, status, v); rerr != nil {
		r.log.Error("render registro", "error", rerr)
	}
}

// GET /api/usuarios
func (r *Router) handleUsers(w http.ResponseWriter, req *http.Request) error {
	list, err := r.users.List(req.Context())
	if err != nil {
		return failWith(http.StatusInternalServerError, "Error al obtener los datos de usuarios", err)
	}
	if list == nil {
		list = []*domain.Account{}
	}
	return writeJSON(w, http.StatusOK, list)
}
