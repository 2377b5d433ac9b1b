package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"recordbook-ui/model"
	"recordbook-ui/store"
	"recordbook-ui/util"
)

type userPayload struct {
	Username string `form:"username" validate:"required,min=3,max=50"`
	Password string `form:"password" validate:"required,min=7,max=80"`
	IsRoot   bool   `form:"is_root"`
}

type changePasswordPayload struct {
	Password string `form:"password" validate:"required,min=7,max=80"`
}

func userID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

// RegisterPage handler to render the root-only create-user form
func RegisterPage() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.Render(http.StatusOK, "user_form.html", map[string]interface{}{
			"baseData":  baseData(c, "register"),
			"action":    "/register",
			"heading":   "Register User",
			"form":      userPayload{},
			"errors":    map[string]string{},
			"csrfToken": csrfToken(c),
			"flashes":   getFlashes(c),
		})
	}
}

// Register handler to create a user account. Root only.
func Register(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var payload userPayload
		c.Bind(&payload)

		rerender := func(errs map[string]string) error {
			return c.Render(http.StatusOK, "user_form.html", map[string]interface{}{
				"baseData":  baseData(c, "register"),
				"action":    "/register",
				"heading":   "Register User",
				"form":      payload,
				"errors":    errs,
				"csrfToken": csrfToken(c),
				"flashes":   getFlashes(c),
			})
		}

		if err := c.Validate(&payload); err != nil {
			return rerender(formErrors(err))
		}

		hash, err := util.HashPassword(payload.Password)
		if err != nil {
			return createError(c, err, "Cannot hash password")
		}

		user, err := db.CreateUser(model.User{
			Username:     payload.Username,
			PasswordHash: hash,
			IsRoot:       payload.IsRoot,
		})
		if err != nil {
			if errors.Is(err, store.ErrDuplicateUsername) {
				return rerender(map[string]string{"Username": "Username already exists."})
			}
			return createError(c, err, "Cannot save user to database")
		}
		log.Infof("Registered user %s (root: %v)", user.Username, user.IsRoot)

		setFlash(c, "success", "User registered successfully!")
		return c.Redirect(http.StatusFound, "/manage_users")
	}
}

// ManageUsers handler to render the user list. Root only.
func ManageUsers(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		users, err := db.GetUsers()
		if err != nil {
			return createError(c, err, "Cannot fetch users from database")
		}

		return c.Render(http.StatusOK, "users.html", map[string]interface{}{
			"baseData":  baseData(c, "manage_users"),
			"users":     users,
			"csrfToken": csrfToken(c),
			"flashes":   getFlashes(c),
		})
	}
}

// EditUserPage handler to render the edit form for a user. Root only.
func EditUserPage(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := userID(c)
		if err != nil {
			return c.String(http.StatusNotFound, "User not found")
		}

		user, err := db.GetUserByID(id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.String(http.StatusNotFound, "User not found")
			}
			return createError(c, err, "Cannot fetch user from database")
		}

		payload := userPayload{Username: user.Username, IsRoot: user.IsRoot}
		return c.Render(http.StatusOK, "user_form.html", map[string]interface{}{
			"baseData":  baseData(c, "manage_users"),
			"action":    "/edit_user/" + c.Param("id"),
			"heading":   "Edit User",
			"form":      payload,
			"errors":    map[string]string{},
			"csrfToken": csrfToken(c),
			"flashes":   getFlashes(c),
		})
	}
}

// EditUser handler to update username, password and role. Root only.
// The password is always re-entered and rehashed, as on registration.
func EditUser(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := userID(c)
		if err != nil {
			return c.String(http.StatusNotFound, "User not found")
		}

		user, err := db.GetUserByID(id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.String(http.StatusNotFound, "User not found")
			}
			return createError(c, err, "Cannot fetch user from database")
		}

		var payload userPayload
		c.Bind(&payload)

		rerender := func(errs map[string]string) error {
			return c.Render(http.StatusOK, "user_form.html", map[string]interface{}{
				"baseData":  baseData(c, "manage_users"),
				"action":    "/edit_user/" + c.Param("id"),
				"heading":   "Edit User",
				"form":      payload,
				"errors":    errs,
				"csrfToken": csrfToken(c),
				"flashes":   getFlashes(c),
			})
		}

		if err := c.Validate(&payload); err != nil {
			return rerender(formErrors(err))
		}

		// demoting the only remaining root would leave the system
		// without an administrator
		if user.IsRoot && !payload.IsRoot {
			rootCount, err := db.CountRootUsers()
			if err != nil {
				return createError(c, err, "Cannot count root users")
			}
			if rootCount <= 1 {
				return rerender(map[string]string{"IsRoot": "At least one root user must remain."})
			}
		}

		hash, err := util.HashPassword(payload.Password)
		if err != nil {
			return createError(c, err, "Cannot hash password")
		}

		user.Username = payload.Username
		user.PasswordHash = hash
		user.IsRoot = payload.IsRoot

		if err := db.UpdateUser(user); err != nil {
			if errors.Is(err, store.ErrDuplicateUsername) {
				return rerender(map[string]string{"Username": "Username already exists."})
			}
			if errors.Is(err, store.ErrNotFound) {
				return c.String(http.StatusNotFound, "User not found")
			}
			return createError(c, err, "Cannot update user in database")
		}
		log.Infof("Updated user %d (%s)", user.ID, user.Username)

		setFlash(c, "success", "User updated successfully!")
		return c.Redirect(http.StatusFound, "/manage_users")
	}
}

// DeleteUserPage handler to render the delete confirmation. The GET
// stays side-effect free; the deletion itself requires a POST.
func DeleteUserPage(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := userID(c)
		if err != nil {
			return c.String(http.StatusNotFound, "User not found")
		}

		user, err := db.GetUserByID(id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.String(http.StatusNotFound, "User not found")
			}
			return createError(c, err, "Cannot fetch user from database")
		}

		return c.Render(http.StatusOK, "delete_user.html", map[string]interface{}{
			"baseData":  baseData(c, "manage_users"),
			"user":      user,
			"csrfToken": csrfToken(c),
			"flashes":   getFlashes(c),
		})
	}
}

// DeleteUser handler to remove a user account. Root only. Existing
// entries keep their creator string; nothing cascades.
func DeleteUser(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := userID(c)
		if err != nil {
			return c.String(http.StatusNotFound, "User not found")
		}

		user, err := db.GetUserByID(id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.String(http.StatusNotFound, "User not found")
			}
			return createError(c, err, "Cannot fetch user from database")
		}

		if user.IsRoot {
			rootCount, err := db.CountRootUsers()
			if err != nil {
				return createError(c, err, "Cannot count root users")
			}
			if rootCount <= 1 {
				setFlash(c, "danger", "At least one root user must remain.")
				return c.Redirect(http.StatusFound, "/manage_users")
			}
		}

		if err := db.DeleteUser(id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.String(http.StatusNotFound, "User not found")
			}
			return createError(c, err, "Cannot delete user from database")
		}
		log.Infof("Removed user %d (%s)", user.ID, user.Username)

		return c.Redirect(http.StatusFound, "/manage_users")
	}
}

// ChangePasswordPage handler to render the self-service password form
func ChangePasswordPage() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.Render(http.StatusOK, "change_password.html", map[string]interface{}{
			"baseData":  baseData(c, "change_password"),
			"errors":    map[string]string{},
			"csrfToken": csrfToken(c),
			"flashes":   getFlashes(c),
		})
	}
}

// ChangePassword handler to set a new password for the current user.
// The old password is not re-entered; an authenticated session is the
// only requirement.
func ChangePassword(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var payload changePasswordPayload
		c.Bind(&payload)

		if err := c.Validate(&payload); err != nil {
			return c.Render(http.StatusOK, "change_password.html", map[string]interface{}{
				"baseData":  baseData(c, "change_password"),
				"errors":    formErrors(err),
				"csrfToken": csrfToken(c),
				"flashes":   getFlashes(c),
			})
		}

		hash, err := util.HashPassword(payload.Password)
		if err != nil {
			return createError(c, err, "Cannot hash password")
		}

		user := contextUser(c)
		user.PasswordHash = hash
		if err := db.UpdateUser(user); err != nil {
			return createError(c, err, "Cannot update password in database")
		}
		log.Infof("User %s changed their password", user.Username)

		setFlash(c, "success", "Password changed successfully!")
		return c.Redirect(http.StatusFound, "/")
	}
}
