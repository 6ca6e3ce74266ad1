package models

import "errors"

// Sentinel errors for storage-level failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")
)

// Authentication errors
var (
	ErrAlreadyLoggedIn     = errors.New("an account is already logged in, logout prior to login")
	ErrInvalidCredentials  = errors.New("invalid login identifier or password")
	ErrLockedOut           = errors.New("too many failed login attempts since last successful login")
	ErrNoLoggedInUser      = errors.New("no logged in user available")
	ErrOverwriteNotAllowed = errors.New("cannot overwrite logged in user")
	ErrAccountNotPersisted = errors.New("account has not been persisted")
	ErrWrongAccountType    = errors.New("account of wrong kind passed")
)

// Account mutation errors
var (
	ErrNotAccountOwner          = errors.New("password can only be changed by the account owner")
	ErrWrongOldPassword         = errors.New("the old password is incorrect")
	ErrPasswordMismatch         = errors.New("the two passwords do not match")
	ErrDuplicateLoginIdentifier = errors.New("the login identifier is already in use")
)
