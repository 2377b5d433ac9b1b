package store

import (
	"errors"

	"recordbook-ui/model"
)

// ErrNotFound is returned when a user or entry id does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateUsername is returned when a username collides with a
// different existing user. The sqlite backend derives it from the
// UNIQUE constraint, so concurrent registrations cannot both slip past
// an application-level pre-check.
var ErrDuplicateUsername = errors.New("username already exists")

type IStore interface {
	Init() error
	Close() error

	CreateUser(user model.User) (model.User, error)
	GetUserByName(username string) (model.User, error)
	GetUserByID(id int64) (model.User, error)
	UpdateUser(user model.User) error
	DeleteUser(id int64) error
	GetUsers() ([]model.User, error)
	CountRootUsers() (int, error)

	SaveEntry(entry model.Entry) (model.Entry, error)
	GetEntry(id int64) (model.Entry, error)
	GetEntries() ([]model.Entry, error)
	UpdateEntry(entry model.Entry) error
	DeleteEntry(id int64) error
}
