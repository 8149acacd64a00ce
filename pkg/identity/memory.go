package identity

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryDirectory is an in-process Directory used by tests
type MemoryDirectory struct {
	sync.Mutex
	accounts map[string]Account

	// FailCreate, when set, is consulted before each create
	FailCreate func(NewAccount) error
	// Created counts successful creates
	Created int
	// Calls counts every directory call
	Calls int
}

var _ Directory = &MemoryDirectory{}

// NewMemoryDirectory returns a directory holding existing
func NewMemoryDirectory(existing ...Account) *MemoryDirectory {
	d := &MemoryDirectory{accounts: make(map[string]Account)}
	for _, a := range existing {
		d.accounts[a.ID] = a
	}
	return d
}

func (d *MemoryDirectory) List(context.Context) ([]Account, error) {
	d.Lock()
	defer d.Unlock()
	d.Calls++
	accounts := make([]Account, 0, len(d.accounts))
	for _, a := range d.accounts {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (d *MemoryDirectory) LookupByEmail(_ context.Context, email string) (Account, bool, error) {
	d.Lock()
	defer d.Unlock()
	d.Calls++
	return d.find(email)
}

func (d *MemoryDirectory) Create(_ context.Context, a NewAccount) (Account, error) {
	d.Lock()
	defer d.Unlock()
	d.Calls++
	if a.Email == "" {
		return Account{}, ErrEmailRequired
	}
	if d.FailCreate != nil {
		if err := d.FailCreate(a); err != nil {
			return Account{}, err
		}
	}
	if _, ok, _ := d.find(a.Email); ok {
		return Account{}, fmt.Errorf("email %s already exists", a.Email)
	}
	acct := Account{ID: uuid.NewString(), Email: NormalizeEmail(a.Email), DisplayName: a.DisplayName}
	d.accounts[acct.ID] = acct
	d.Created++
	return acct, nil
}

// Accounts returns all accounts sorted by email
func (d *MemoryDirectory) Accounts() []Account {
	d.Lock()
	defer d.Unlock()
	accounts := make([]Account, 0, len(d.accounts))
	for _, a := range d.accounts {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Email < accounts[j].Email })
	return accounts
}

func (d *MemoryDirectory) find(email string) (Account, bool, error) {
	email = NormalizeEmail(email)
	for _, a := range d.accounts {
		if NormalizeEmail(a.Email) == email {
			return a, true, nil
		}
	}
	return Account{}, false, nil
}
