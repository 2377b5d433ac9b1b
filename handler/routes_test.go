package handler_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"recordbook-ui/handler"
	"recordbook-ui/model"
	"recordbook-ui/router"
	"recordbook-ui/store/sqlitedb"
)

// newTestApp wires the full route table against a fresh sqlite
// database, the same way main does (minus the CSRF middleware, which
// is transport hardening orthogonal to the handler logic under test).
func newTestApp(t *testing.T) (*echo.Echo, *sqlitedb.SqliteDB) {
	t.Helper()

	db, err := sqlitedb.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Init())
	t.Cleanup(func() { db.Close() })

	app := router.New(map[string]string{"appVersion": "test"}, []byte("test-secret"))

	app.GET("/login", handler.LoginPage())
	app.POST("/login", handler.Login(db))
	app.GET("/logout", handler.Logout(), handler.ValidSession(db))

	app.GET("/", handler.EntryList(db), handler.ValidSession(db))
	app.GET("/view/:id", handler.ViewEntry(db), handler.ValidSession(db))
	app.GET("/add", handler.NewEntryPage(), handler.ValidSession(db))
	app.POST("/add", handler.NewEntry(db), handler.ValidSession(db))
	app.GET("/edit/:id", handler.EditEntryPage(db), handler.ValidSession(db))
	app.POST("/edit/:id", handler.EditEntry(db), handler.ValidSession(db))
	app.POST("/delete/:id", handler.DeleteEntry(db), handler.ValidSession(db), handler.RequiresRoot)

	app.GET("/change_password", handler.ChangePasswordPage(), handler.ValidSession(db))
	app.POST("/change_password", handler.ChangePassword(db), handler.ValidSession(db))

	app.GET("/register", handler.RegisterPage(), handler.ValidSession(db), handler.RequiresRoot)
	app.POST("/register", handler.Register(db), handler.ValidSession(db), handler.RequiresRoot)
	app.GET("/manage_users", handler.ManageUsers(db), handler.ValidSession(db), handler.RequiresRoot)
	app.GET("/edit_user/:id", handler.EditUserPage(db), handler.ValidSession(db), handler.RequiresRoot)
	app.POST("/edit_user/:id", handler.EditUser(db), handler.ValidSession(db), handler.RequiresRoot)
	app.GET("/delete_user/:id", handler.DeleteUserPage(db), handler.ValidSession(db), handler.RequiresRoot)
	app.POST("/delete_user/:id", handler.DeleteUser(db), handler.ValidSession(db), handler.RequiresRoot)

	return app, db
}

// testClient keeps cookies across requests, like a browser would.
type testClient struct {
	t       *testing.T
	app     *echo.Echo
	cookies map[string]*http.Cookie
}

func newClient(t *testing.T, app *echo.Echo) *testClient {
	return &testClient{t: t, app: app, cookies: make(map[string]*http.Cookie)}
}

func (c *testClient) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	}
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	c.app.ServeHTTP(rec, req)
	for _, cookie := range rec.Result().Cookies() {
		c.cookies[cookie.Name] = cookie
	}
	return rec
}

func (c *testClient) login(username, password string) *httptest.ResponseRecorder {
	return c.do(http.MethodPost, "/login", url.Values{
		"username": {username},
		"password": {password},
	})
}

func entryForm(title, subject, details string) url.Values {
	return url.Values{
		"title":   {title},
		"subject": {subject},
		"details": {details},
	}
}

func TestUnauthenticatedRedirectsToLogin(t *testing.T) {
	app, _ := newTestApp(t)
	c := newClient(t, app)

	rec := c.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderLocation), "/login"))
}

func TestLoginInvalidCredentials(t *testing.T) {
	app, _ := newTestApp(t)
	c := newClient(t, app)

	// wrong password and unknown user must be indistinguishable
	for _, creds := range [][2]string{
		{"root", "wrong-password"},
		{"nobody", "some-password"},
	} {
		rec := c.login(creds[0], creds[1])
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "Invalid username or password")
	}

	// still unauthenticated
	rec := c.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
}

func TestLoginAndLogout(t *testing.T) {
	app, _ := newTestApp(t)
	c := newClient(t, app)

	rec := c.login("root", "default")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))

	rec = c.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "root")

	rec = c.do(http.MethodGet, "/logout", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))

	rec = c.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
}

func TestEntryLifecycleEndToEnd(t *testing.T) {
	app, db := newTestApp(t)
	root := newClient(t, app)

	rec := root.login("root", "default")
	require.Equal(t, http.StatusFound, rec.Code)

	// add an entry
	rec = root.do(http.MethodPost, "/add", entryForm("T", "S", "D"))
	require.Equal(t, http.StatusFound, rec.Code)

	entries, err := db.GetEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "root", entries[0].Creator)
	entryID := entries[0].ID

	rec = root.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "T")
	require.Contains(t, rec.Body.String(), "root")

	// a non-root user cannot delete
	rec = root.do(http.MethodPost, "/register", url.Values{
		"username": {"alice"},
		"password": {"alicepass"},
	})
	require.Equal(t, http.StatusFound, rec.Code)

	alice := newClient(t, app)
	rec = alice.login("alice", "alicepass")
	require.Equal(t, http.StatusFound, rec.Code)

	rec = alice.do(http.MethodPost, "/delete/1", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "Permission Denied")

	_, err = db.GetEntry(entryID)
	require.NoError(t, err) // still present

	// root deletes
	rec = root.do(http.MethodPost, "/delete/1", nil)
	require.Equal(t, http.StatusFound, rec.Code)

	entries, err = db.GetEntries()
	require.NoError(t, err)
	require.Empty(t, entries)

	rec = root.do(http.MethodGet, "/view/1", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddEntryValidation(t *testing.T) {
	app, db := newTestApp(t)
	c := newClient(t, app)
	c.login("root", "default")

	for _, form := range []url.Values{
		entryForm("", "S", "D"),
		entryForm("T", "", "D"),
		entryForm("T", "S", ""),
		entryForm("   ", "S", "D"), // whitespace only
	} {
		rec := c.do(http.MethodPost, "/add", form)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "This field is required.")
	}

	entries, err := db.GetEntries()
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestEditEntryPreservesCreatorAndTimestamp(t *testing.T) {
	app, db := newTestApp(t)
	root := newClient(t, app)
	root.login("root", "default")

	root.do(http.MethodPost, "/register", url.Values{
		"username": {"alice"},
		"password": {"alicepass"},
	})
	root.do(http.MethodPost, "/add", entryForm("T", "S", "D"))

	entries, err := db.GetEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	before := entries[0]

	// any authenticated user may edit any entry
	alice := newClient(t, app)
	alice.login("alice", "alicepass")
	rec := alice.do(http.MethodPost, "/edit/1", entryForm("T2", "S2", "D2"))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/view/1", rec.Header().Get(echo.HeaderLocation))

	after, err := db.GetEntry(before.ID)
	require.NoError(t, err)
	require.Equal(t, "T2", after.Title)
	require.Equal(t, "root", after.Creator)
	require.True(t, after.CreatedAt.Equal(before.CreatedAt))
}

func TestEditMissingEntry(t *testing.T) {
	app, _ := newTestApp(t)
	c := newClient(t, app)
	c.login("root", "default")

	rec := c.do(http.MethodGet, "/edit/42", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(http.MethodPost, "/edit/42", entryForm("T", "S", "D"))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(http.MethodGet, "/view/not-a-number", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestViewEntryIdempotent(t *testing.T) {
	app, _ := newTestApp(t)
	c := newClient(t, app)
	c.login("root", "default")

	c.do(http.MethodPost, "/add", entryForm("T", "S", "D"))
	c.do(http.MethodGet, "/", nil) // drain the add flash

	first := c.do(http.MethodGet, "/view/1", nil)
	require.Equal(t, http.StatusOK, first.Code)
	second := c.do(http.MethodGet, "/view/1", nil)
	require.Equal(t, http.StatusOK, second.Code)
	require.Equal(t, first.Body.String(), second.Body.String())
}

func TestRegisterRequiresRoot(t *testing.T) {
	app, _ := newTestApp(t)
	root := newClient(t, app)
	root.login("root", "default")
	root.do(http.MethodPost, "/register", url.Values{
		"username": {"alice"},
		"password": {"alicepass"},
	})

	alice := newClient(t, app)
	alice.login("alice", "alicepass")

	for _, path := range []string{"/register", "/manage_users", "/edit_user/1", "/delete_user/1"} {
		rec := alice.do(http.MethodGet, path, nil)
		require.Equal(t, http.StatusForbidden, rec.Code, path)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	app, db := newTestApp(t)
	c := newClient(t, app)
	c.login("root", "default")

	rec := c.do(http.MethodPost, "/register", url.Values{
		"username": {"alice"},
		"password": {"alicepass"},
	})
	require.Equal(t, http.StatusFound, rec.Code)

	rec = c.do(http.MethodPost, "/register", url.Values{
		"username": {"alice"},
		"password": {"otherpass"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Username already exists.")

	users, err := db.GetUsers()
	require.NoError(t, err)
	require.Len(t, users, 2) // root + alice, nothing more
}

func TestRegisterValidation(t *testing.T) {
	app, db := newTestApp(t)
	c := newClient(t, app)
	c.login("root", "default")

	// username too short, password too short
	rec := c.do(http.MethodPost, "/register", url.Values{
		"username": {"ab"},
		"password": {"short"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "at least 3 characters")
	require.Contains(t, rec.Body.String(), "at least 7 characters")

	users, err := db.GetUsers()
	require.NoError(t, err)
	require.Len(t, users, 1)
}

func TestRegisteredUserCanLogin(t *testing.T) {
	app, _ := newTestApp(t)
	root := newClient(t, app)
	root.login("root", "default")
	root.do(http.MethodPost, "/register", url.Values{
		"username": {"alice"},
		"password": {"alicepass"},
	})

	alice := newClient(t, app)
	rec := alice.login("alice", "alicepass")
	require.Equal(t, http.StatusFound, rec.Code)

	rec = alice.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "alice")
}

func TestChangePassword(t *testing.T) {
	app, _ := newTestApp(t)
	c := newClient(t, app)
	c.login("root", "default")

	rec := c.do(http.MethodPost, "/change_password", url.Values{
		"password": {"new-password"},
	})
	require.Equal(t, http.StatusFound, rec.Code)

	// old credentials no longer work, new ones do
	fresh := newClient(t, app)
	rec = fresh.login("root", "default")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Invalid username or password")

	rec = fresh.login("root", "new-password")
	require.Equal(t, http.StatusFound, rec.Code)
}

func TestEditUser(t *testing.T) {
	app, db := newTestApp(t)
	c := newClient(t, app)
	c.login("root", "default")

	c.do(http.MethodPost, "/register", url.Values{
		"username": {"alice"},
		"password": {"alicepass"},
	})
	alice, err := db.GetUserByName("alice")
	require.NoError(t, err)

	rec := c.do(http.MethodPost, "/edit_user/"+itoa(alice.ID), url.Values{
		"username": {"alicia"},
		"password": {"newsecret"},
		"is_root":  {"true"},
	})
	require.Equal(t, http.StatusFound, rec.Code)

	got, err := db.GetUserByID(alice.ID)
	require.NoError(t, err)
	require.Equal(t, "alicia", got.Username)
	require.True(t, got.IsRoot)

	rec = c.do(http.MethodGet, "/edit_user/9999", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteUserGetIsSideEffectFree(t *testing.T) {
	app, db := newTestApp(t)
	c := newClient(t, app)
	c.login("root", "default")

	c.do(http.MethodPost, "/register", url.Values{
		"username": {"alice"},
		"password": {"alicepass"},
	})
	alice, err := db.GetUserByName("alice")
	require.NoError(t, err)

	// GET renders a confirmation and deletes nothing
	rec := c.do(http.MethodGet, "/delete_user/"+itoa(alice.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "alice")

	_, err = db.GetUserByName("alice")
	require.NoError(t, err)

	// POST performs the deletion
	rec = c.do(http.MethodPost, "/delete_user/"+itoa(alice.ID), nil)
	require.Equal(t, http.StatusFound, rec.Code)

	_, err = db.GetUserByName("alice")
	require.Error(t, err)
}

func TestLastRootCannotBeRemoved(t *testing.T) {
	app, db := newTestApp(t)
	c := newClient(t, app)
	c.login("root", "default")

	root, err := db.GetUserByName("root")
	require.NoError(t, err)

	// deleting the only root is refused
	rec := c.do(http.MethodPost, "/delete_user/"+itoa(root.ID), nil)
	require.Equal(t, http.StatusFound, rec.Code)
	_, err = db.GetUserByName("root")
	require.NoError(t, err)

	// demoting the only root is refused
	rec = c.do(http.MethodPost, "/edit_user/"+itoa(root.ID), url.Values{
		"username": {"root"},
		"password": {"default-pw"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "At least one root user must remain.")

	got, err := db.GetUserByName("root")
	require.NoError(t, err)
	require.True(t, got.IsRoot)

	// with a second root present, deletion goes through
	_, err = db.CreateUser(model.User{Username: "admin2", PasswordHash: "x", IsRoot: true})
	require.NoError(t, err)
	rec = c.do(http.MethodPost, "/delete_user/"+itoa(root.ID), nil)
	require.Equal(t, http.StatusFound, rec.Code)
	_, err = db.GetUserByName("root")
	require.Error(t, err)
}

func TestDeletedUserSessionDies(t *testing.T) {
	app, db := newTestApp(t)
	root := newClient(t, app)
	root.login("root", "default")
	root.do(http.MethodPost, "/register", url.Values{
		"username": {"alice"},
		"password": {"alicepass"},
	})

	alice := newClient(t, app)
	alice.login("alice", "alicepass")
	rec := alice.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	user, err := db.GetUserByName("alice")
	require.NoError(t, err)
	root.do(http.MethodPost, "/delete_user/"+itoa(user.ID), nil)

	// the session token still exists but no longer resolves to a user
	rec = alice.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
