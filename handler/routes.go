package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/rs/xid"
	"gopkg.in/go-playground/validator.v9"

	"recordbook-ui/model"
	"recordbook-ui/store"
	"recordbook-ui/util"
)

type loginPayload struct {
	Username string `form:"username" validate:"required,min=3,max=50"`
	Password string `form:"password" validate:"required,min=7,max=80"`
	Remember bool   `form:"remember"`
}

type entryPayload struct {
	Title           string `form:"title" validate:"required"`
	Subject         string `form:"subject" validate:"required"`
	PersonName      string `form:"person_name"`
	PhoneNumber     string `form:"phone_number"`
	Age             int    `form:"age"`
	Email           string `form:"email"`
	Details         string `form:"details" validate:"required"`
	AdditionalLinks string `form:"additional_links"`
}

func (p *entryPayload) trim() {
	p.Title = strings.TrimSpace(p.Title)
	p.Subject = strings.TrimSpace(p.Subject)
	p.Details = strings.TrimSpace(p.Details)
}

func createError(c echo.Context, err error, msg string) error {
	log.Error(msg, err)
	return c.String(http.StatusInternalServerError, msg)
}

// entryID parses the :id route parameter. A malformed id is treated
// the same as a missing entry.
func entryID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

func baseData(c echo.Context, active string) model.BaseData {
	user := contextUser(c)
	return model.BaseData{Active: active, CurrentUser: user.Username, Root: user.IsRoot}
}

func csrfToken(c echo.Context) string {
	token, _ := c.Get("csrf").(string)
	return token
}

// formErrors maps a validator error to per-field messages for the
// form templates. Anything else becomes a single form-level message.
func formErrors(err error) map[string]string {
	fieldErrors := make(map[string]string)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fieldErrors[""] = "Invalid input"
		return fieldErrors
	}
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			fieldErrors[fe.Field()] = "This field is required."
		case "min":
			fieldErrors[fe.Field()] = "Field must be at least " + fe.Param() + " characters long."
		case "max":
			fieldErrors[fe.Field()] = "Field cannot be longer than " + fe.Param() + " characters."
		default:
			fieldErrors[fe.Field()] = "Invalid value."
		}
	}
	return fieldErrors
}

// LoginPage handler
func LoginPage() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.Render(http.StatusOK, "login.html", map[string]interface{}{
			"csrfToken": csrfToken(c),
			"flashes":   getFlashes(c),
			"error":     "",
		})
	}
}

// Login handler to authenticate a user and establish a session
func Login(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var payload loginPayload
		c.Bind(&payload)

		// Validation failures and unknown users produce the same
		// generic message so the form never reveals whether the
		// username exists.
		invalid := func() error {
			return c.Render(http.StatusOK, "login.html", map[string]interface{}{
				"csrfToken": csrfToken(c),
				"flashes":   getFlashes(c),
				"error":     "Invalid username or password",
			})
		}

		if err := c.Validate(&payload); err != nil {
			return invalid()
		}

		user, err := db.GetUserByName(payload.Username)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return invalid()
			}
			return createError(c, err, "Cannot query user for login")
		}

		match, err := util.VerifyHash(user.PasswordHash, payload.Password)
		if err != nil {
			return createError(c, err, "Cannot verify password")
		}
		if !match {
			return invalid()
		}

		token := xid.New().String()
		if err := setSession(c, user, token, payload.Remember); err != nil {
			return createError(c, err, "Cannot save session")
		}
		log.Infof("User %s logged in", user.Username)

		next := c.QueryParam("next")
		if next == "" || !strings.HasPrefix(next, "/") {
			next = "/"
		}
		return c.Redirect(http.StatusFound, next)
	}
}

// Logout handler to end the current session
func Logout() echo.HandlerFunc {
	return func(c echo.Context) error {
		clearSession(c)
		return c.Redirect(http.StatusFound, "/login")
	}
}

// EntryList handler to render the list of all entries
func EntryList(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		entries, err := db.GetEntries()
		if err != nil {
			return createError(c, err, "Cannot fetch entries from database")
		}

		return c.Render(http.StatusOK, "entries.html", map[string]interface{}{
			"baseData":  baseData(c, ""),
			"entries":   entries,
			"csrfToken": csrfToken(c),
			"flashes":   getFlashes(c),
		})
	}
}

// ViewEntry handler to render a single entry
func ViewEntry(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := entryID(c)
		if err != nil {
			return c.String(http.StatusNotFound, "Entry not found")
		}

		entry, err := db.GetEntry(id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.String(http.StatusNotFound, "Entry not found")
			}
			return createError(c, err, "Cannot fetch entry from database")
		}

		return c.Render(http.StatusOK, "entry_view.html", map[string]interface{}{
			"baseData":  baseData(c, ""),
			"entry":     entry,
			"csrfToken": csrfToken(c),
			"flashes":   getFlashes(c),
		})
	}
}

// NewEntryPage handler to render the add-entry form
func NewEntryPage() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.Render(http.StatusOK, "entry_form.html", map[string]interface{}{
			"baseData":  baseData(c, "add"),
			"action":    "/add",
			"heading":   "Add Entry",
			"form":      entryPayload{},
			"errors":    map[string]string{},
			"csrfToken": csrfToken(c),
			"flashes":   getFlashes(c),
		})
	}
}

// NewEntry handler to create an entry from the submitted form
func NewEntry(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var payload entryPayload
		c.Bind(&payload)
		payload.trim()

		if err := c.Validate(&payload); err != nil {
			return c.Render(http.StatusOK, "entry_form.html", map[string]interface{}{
				"baseData":  baseData(c, "add"),
				"action":    "/add",
				"heading":   "Add Entry",
				"form":      payload,
				"errors":    formErrors(err),
				"csrfToken": csrfToken(c),
				"flashes":   getFlashes(c),
			})
		}

		entry := model.Entry{
			Title:           payload.Title,
			Subject:         payload.Subject,
			PersonName:      payload.PersonName,
			PhoneNumber:     payload.PhoneNumber,
			Age:             payload.Age,
			Email:           payload.Email,
			Details:         payload.Details,
			AdditionalLinks: payload.AdditionalLinks,
			Creator:         contextUser(c).Username,
		}
		entry, err := db.SaveEntry(entry)
		if err != nil {
			return createError(c, err, "Cannot save entry to database")
		}
		log.Infof("Created entry %d (%s)", entry.ID, entry.Title)

		setFlash(c, "success", "Entry added successfully!")
		return c.Redirect(http.StatusFound, "/")
	}
}

// EditEntryPage handler to render the edit form for an entry
func EditEntryPage(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := entryID(c)
		if err != nil {
			return c.String(http.StatusNotFound, "Entry not found")
		}

		entry, err := db.GetEntry(id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.String(http.StatusNotFound, "Entry not found")
			}
			return createError(c, err, "Cannot fetch entry from database")
		}

		payload := entryPayload{
			Title:           entry.Title,
			Subject:         entry.Subject,
			PersonName:      entry.PersonName,
			PhoneNumber:     entry.PhoneNumber,
			Age:             entry.Age,
			Email:           entry.Email,
			Details:         entry.Details,
			AdditionalLinks: entry.AdditionalLinks,
		}
		return c.Render(http.StatusOK, "entry_form.html", map[string]interface{}{
			"baseData":  baseData(c, ""),
			"action":    "/edit/" + c.Param("id"),
			"heading":   "Edit Entry",
			"form":      payload,
			"errors":    map[string]string{},
			"csrfToken": csrfToken(c),
			"flashes":   getFlashes(c),
		})
	}
}

// EditEntry handler to update an entry from the submitted form. Any
// authenticated user may edit any entry; creator and creation time
// stay as they were.
func EditEntry(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := entryID(c)
		if err != nil {
			return c.String(http.StatusNotFound, "Entry not found")
		}

		entry, err := db.GetEntry(id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.String(http.StatusNotFound, "Entry not found")
			}
			return createError(c, err, "Cannot fetch entry from database")
		}

		var payload entryPayload
		c.Bind(&payload)
		payload.trim()

		if err := c.Validate(&payload); err != nil {
			return c.Render(http.StatusOK, "entry_form.html", map[string]interface{}{
				"baseData":  baseData(c, ""),
				"action":    "/edit/" + c.Param("id"),
				"heading":   "Edit Entry",
				"form":      payload,
				"errors":    formErrors(err),
				"csrfToken": csrfToken(c),
				"flashes":   getFlashes(c),
			})
		}

		entry.Title = payload.Title
		entry.Subject = payload.Subject
		entry.PersonName = payload.PersonName
		entry.PhoneNumber = payload.PhoneNumber
		entry.Age = payload.Age
		entry.Email = payload.Email
		entry.Details = payload.Details
		entry.AdditionalLinks = payload.AdditionalLinks

		if err := db.UpdateEntry(entry); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.String(http.StatusNotFound, "Entry not found")
			}
			return createError(c, err, "Cannot update entry in database")
		}
		log.Infof("Updated entry %d", entry.ID)

		setFlash(c, "success", "Entry updated successfully!")
		return c.Redirect(http.StatusFound, "/view/"+c.Param("id"))
	}
}

// DeleteEntry handler to remove an entry. Root only.
func DeleteEntry(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := entryID(c)
		if err != nil {
			return c.String(http.StatusNotFound, "Entry not found")
		}

		if err := db.DeleteEntry(id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.String(http.StatusNotFound, "Entry not found")
			}
			return createError(c, err, "Cannot delete entry from database")
		}
		log.Infof("Removed entry %d", id)

		setFlash(c, "success", "Entry deleted successfully!")
		return c.Redirect(http.StatusFound, "/")
	}
}
