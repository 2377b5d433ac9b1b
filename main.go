package main

import (
	"flag"
	"fmt"

	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"recordbook-ui/handler"
	"recordbook-ui/router"
	"recordbook-ui/store/sqlitedb"
	"recordbook-ui/util"
)

var (
	// command-line banner information
	appVersion = "development"
	gitCommit  = "N/A"
	// configuration variables
	flagBindAddress   = "0.0.0.0:5000"
	flagDBPath        = "db/recordbook.db"
	flagSessionSecret string
)

func init() {
	// command-line flags and env variables
	flag.StringVar(&flagBindAddress, "bind-address", util.LookupEnvOrString(util.BindAddressEnvVar, flagBindAddress), "Address:Port to which the app will be bound.")
	flag.StringVar(&flagDBPath, "db-path", util.LookupEnvOrString(util.DBPathEnvVar, flagDBPath), "Path of the sqlite database file.")
	flag.StringVar(&flagSessionSecret, "session-secret", util.LookupEnvOrString(util.SessionSecretEnvVar, flagSessionSecret), "The key used to sign session cookies.")
	flag.Parse()

	// update runtime config
	util.BindAddress = flagBindAddress
	util.DBPath = flagDBPath
	util.SessionSecret = []byte(flagSessionSecret)

	// print app information
	fmt.Println("Record Book")
	fmt.Println("App Version\t:", appVersion)
	fmt.Println("Git Commit\t:", gitCommit)
	fmt.Println("Bind address\t:", util.BindAddress)
	fmt.Println("Database path\t:", util.DBPath)
}

func main() {
	if len(util.SessionSecret) == 0 {
		log.Fatal("session secret is required")
	}

	db, err := sqlitedb.New(util.DBPath)
	if err != nil {
		log.Fatal("Cannot open database: ", err)
	}
	defer db.Close()

	// migrate the schema and seed the root account before serving
	if err := db.Init(); err != nil {
		log.Fatal("Cannot init database: ", err)
	}

	// set app extra data
	extraData := make(map[string]string)
	extraData["appVersion"] = appVersion

	// register routes
	app := router.New(extraData, util.SessionSecret)
	app.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup: "form:csrf_token",
	}))

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

	app.Logger.Fatal(app.Start(util.BindAddress))
}
