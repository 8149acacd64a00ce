package identity

import (
	"context"
	"errors"

	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/iterator"
)

// FirebaseDirectory manages accounts in Firebase Authentication
type FirebaseDirectory struct {
	client *auth.Client
}

var _ Directory = &FirebaseDirectory{}

// NewFirebaseDirectory wraps an initialized auth client
func NewFirebaseDirectory(client *auth.Client) *FirebaseDirectory {
	return &FirebaseDirectory{client: client}
}

// List pages through every user in the project
func (d *FirebaseDirectory) List(ctx context.Context) ([]Account, error) {
	accounts := make([]Account, 0)
	iter := d.client.Users(ctx, "")
	for {
		u, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, Account{
			ID:          u.UID,
			Email:       u.Email,
			DisplayName: u.DisplayName,
		})
	}
	return accounts, nil
}

func (d *FirebaseDirectory) LookupByEmail(ctx context.Context, email string) (Account, bool, error) {
	u, err := d.client.GetUserByEmail(ctx, NormalizeEmail(email))
	if auth.IsUserNotFound(err) {
		return Account{}, false, nil
	}
	if err != nil {
		return Account{}, false, err
	}
	return Account{ID: u.UID, Email: u.Email, DisplayName: u.DisplayName}, true, nil
}

func (d *FirebaseDirectory) Create(ctx context.Context, a NewAccount) (Account, error) {
	if a.Email == "" {
		return Account{}, ErrEmailRequired
	}
	params := (&auth.UserToCreate{}).
		Email(a.Email).
		Password(a.Password)
	if a.DisplayName != "" {
		params = params.DisplayName(a.DisplayName)
	}
	u, err := d.client.CreateUser(ctx, params)
	if err != nil {
		return Account{}, err
	}
	return Account{ID: u.UID, Email: u.Email, DisplayName: u.DisplayName}, nil
}
