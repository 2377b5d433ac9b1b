package handler

import (
	"encoding/gob"
	"fmt"
	"net/http"

	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	"recordbook-ui/model"
	"recordbook-ui/store"
)

const sessionTokenCookie = "session_token"

// rememberMaxAge is the session lifetime when "remember me" is set.
// Without it the cookie lasts for the browser session only.
const rememberMaxAge = 30 * 24 * 60 * 60

type flashMessage struct {
	Category string
	Message  string
}

func init() {
	gob.Register(flashMessage{})
}

// ValidSession to redirect user to the login page if they are not
// authenticated or their session is no longer valid. The resolved user
// is stored in the request context for the downstream handler.
func ValidSession(db store.IStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := currentUser(c, db)
			if err != nil {
				if c.Request().Method == http.MethodGet {
					return c.Redirect(http.StatusTemporaryRedirect, fmt.Sprintf("/login?next=%s", c.Request().URL))
				}
				return c.Redirect(http.StatusTemporaryRedirect, "/login")
			}
			c.Set("currentUser", user)
			return next(c)
		}
	}
}

// RequiresRoot to stop non-root users before root-only handlers. Must
// sit behind ValidSession.
func RequiresRoot(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !contextUser(c).IsRoot {
			return c.String(http.StatusForbidden, "Permission Denied")
		}
		return next(c)
	}
}

// contextUser returns the user resolved by ValidSession.
func contextUser(c echo.Context) model.User {
	user, _ := c.Get("currentUser").(model.User)
	return user
}

// currentUser resolves the request's session to a user record. The
// lookup goes to the store every time so a deleted user's session dies
// immediately and role changes take effect on the next request.
func currentUser(c echo.Context, db store.IStore) (model.User, error) {
	if !isValidSession(c) {
		return model.User{}, fmt.Errorf("invalid session")
	}

	sess, _ := session.Get("session", c)
	userID, ok := sess.Values["user_id"].(int64)
	if !ok {
		return model.User{}, fmt.Errorf("no user bound to session")
	}

	user, err := db.GetUserByID(userID)
	if err != nil {
		return model.User{}, err
	}
	return user, nil
}

func isValidSession(c echo.Context) bool {
	sess, _ := session.Get("session", c)
	cookie, err := c.Cookie(sessionTokenCookie)
	if err != nil || sess.Values[sessionTokenCookie] != cookie.Value {
		return false
	}
	return true
}

// setSession establishes an authenticated session for the user.
func setSession(c echo.Context, user model.User, token string, remember bool) error {
	maxAge := 0
	if remember {
		maxAge = rememberMaxAge
	}

	sess, _ := session.Get("session", c)
	sess.Options.HttpOnly = true
	sess.Options.Path = "/"
	sess.Options.MaxAge = maxAge
	sess.Values["user_id"] = user.ID
	sess.Values["username"] = user.Username
	sess.Values[sessionTokenCookie] = token
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return err
	}

	c.SetCookie(&http.Cookie{
		Name:     sessionTokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
	})
	return nil
}

// clearSession to remove the current session
func clearSession(c echo.Context) {
	sess, _ := session.Get("session", c)
	sess.Values["user_id"] = int64(0)
	sess.Values["username"] = ""
	sess.Values[sessionTokenCookie] = ""
	sess.Options.MaxAge = -1
	sess.Save(c.Request(), c.Response())

	c.SetCookie(&http.Cookie{
		Name:     sessionTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// setFlash queues a one-shot message for the next rendered page.
func setFlash(c echo.Context, category, message string) {
	sess, _ := session.Get("session", c)
	sess.AddFlash(flashMessage{Category: category, Message: message})
	sess.Save(c.Request(), c.Response())
}

// getFlashes drains the queued flash messages.
func getFlashes(c echo.Context) []flashMessage {
	sess, _ := session.Get("session", c)
	raw := sess.Flashes()
	if len(raw) > 0 {
		sess.Save(c.Request(), c.Response())
	}
	flashes := make([]flashMessage, 0, len(raw))
	for _, f := range raw {
		if msg, ok := f.(flashMessage); ok {
			flashes = append(flashes, msg)
		}
	}
	return flashes
}
