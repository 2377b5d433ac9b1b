package router

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"reflect"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"recordbook-ui/util"
)

//go:embed templates
var tmplFS embed.FS

// TemplateRegistry is a custom html/template renderer for Echo framework
type TemplateRegistry struct {
	templates map[string]*template.Template
	extraData map[string]string
}

// Render e.Renderer interface
func (t *TemplateRegistry) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	tmpl, ok := t.templates[name]
	if !ok {
		return errors.New("Template not found -> " + name)
	}

	// inject more app data information. E.g. appVersion
	if reflect.TypeOf(data).Kind() == reflect.Map {
		for k, v := range t.extraData {
			data.(map[string]interface{})[k] = v
		}
	}

	// login page does not need the base layout
	if name == "login.html" {
		return tmpl.Execute(w, data)
	}

	return tmpl.ExecuteTemplate(w, "base.html", data)
}

// New function
func New(extraData map[string]string, secret []byte) *echo.Echo {
	e := echo.New()
	e.Use(session.Middleware(sessions.NewCookieStore(secret)))

	// read html template files to strings
	tmplBaseString, err := util.StringFromEmbedFile(tmplFS, "templates/base.html")
	if err != nil {
		log.Fatal(err)
	}

	tmplLoginString, err := util.StringFromEmbedFile(tmplFS, "templates/login.html")
	if err != nil {
		log.Fatal(err)
	}

	tmplEntriesString, err := util.StringFromEmbedFile(tmplFS, "templates/entries.html")
	if err != nil {
		log.Fatal(err)
	}

	tmplEntryViewString, err := util.StringFromEmbedFile(tmplFS, "templates/entry_view.html")
	if err != nil {
		log.Fatal(err)
	}

	tmplEntryFormString, err := util.StringFromEmbedFile(tmplFS, "templates/entry_form.html")
	if err != nil {
		log.Fatal(err)
	}

	tmplUsersString, err := util.StringFromEmbedFile(tmplFS, "templates/users.html")
	if err != nil {
		log.Fatal(err)
	}

	tmplUserFormString, err := util.StringFromEmbedFile(tmplFS, "templates/user_form.html")
	if err != nil {
		log.Fatal(err)
	}

	tmplDeleteUserString, err := util.StringFromEmbedFile(tmplFS, "templates/delete_user.html")
	if err != nil {
		log.Fatal(err)
	}

	tmplChangePasswordString, err := util.StringFromEmbedFile(tmplFS, "templates/change_password.html")
	if err != nil {
		log.Fatal(err)
	}

	// create template list
	templates := make(map[string]*template.Template)
	templates["login.html"] = template.Must(template.New("login").Parse(tmplLoginString))
	templates["entries.html"] = template.Must(template.New("entries").Parse(tmplBaseString + tmplEntriesString))
	templates["entry_view.html"] = template.Must(template.New("entry_view").Parse(tmplBaseString + tmplEntryViewString))
	templates["entry_form.html"] = template.Must(template.New("entry_form").Parse(tmplBaseString + tmplEntryFormString))
	templates["users.html"] = template.Must(template.New("users").Parse(tmplBaseString + tmplUsersString))
	templates["user_form.html"] = template.Must(template.New("user_form").Parse(tmplBaseString + tmplUserFormString))
	templates["delete_user.html"] = template.Must(template.New("delete_user").Parse(tmplBaseString + tmplDeleteUserString))
	templates["change_password.html"] = template.Must(template.New("change_password").Parse(tmplBaseString + tmplChangePasswordString))

	lvl, err := util.ParseLogLevel(util.LookupEnvOrString(util.LogLevelEnvVar, "INFO"))
	if err != nil {
		log.Fatal(err)
	}
	logConfig := middleware.DefaultLoggerConfig
	logConfig.Skipper = func(c echo.Context) bool {
		resp := c.Response()
		if resp.Status >= 500 && lvl > log.ERROR { // do not log if response is 5XX but log level is higher than ERROR
			return true
		} else if resp.Status >= 400 && lvl > log.WARN { // do not log if response is 4XX but log level is higher than WARN
			return true
		} else if lvl > log.DEBUG { // do not log if log level is higher than DEBUG
			return true
		}
		return false
	}

	e.Logger.SetLevel(lvl)
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.LoggerWithConfig(logConfig))
	e.HideBanner = true
	e.HidePort = lvl > log.INFO // hide the port output if the log level is higher than INFO
	e.Validator = NewValidator()
	e.Renderer = &TemplateRegistry{
		templates: templates,
		extraData: extraData,
	}

	return e
}
