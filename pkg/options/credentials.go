package options

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// CredentialsEnv is consulted when no credentials file is given
const CredentialsEnv = "GOOGLE_APPLICATION_CREDENTIALS"

// ErrCredentialMissing is returned when no service account file can be found
var ErrCredentialMissing = errors.New("service account credentials not found")

// CredentialsOptions holds options for the Firebase project both the
// document store and the identity provider live in
type CredentialsOptions struct {
	CredentialsFile string
	ProjectID       string

	App *firebase.App
}

// Complete resolves the credentials file and initializes the Firebase app.
// Set either the file or App, but not both.
func (o *CredentialsOptions) Complete(ctx context.Context) error {
	if o.App != nil {
		log.Debug().Msg("firebase app already configured, skipping credentials option validation")
		return nil
	}
	if o.CredentialsFile == "" {
		o.CredentialsFile = os.Getenv(CredentialsEnv)
	}
	if o.CredentialsFile == "" {
		return fmt.Errorf("%w: pass --credentials or set %s", ErrCredentialMissing, CredentialsEnv)
	}
	info, err := os.Stat(o.CredentialsFile)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCredentialMissing, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrCredentialMissing, o.CredentialsFile)
	}

	var cfg *firebase.Config
	if o.ProjectID != "" {
		cfg = &firebase.Config{ProjectID: o.ProjectID}
	}
	o.App, err = firebase.NewApp(ctx, cfg, option.WithCredentialsFile(o.CredentialsFile))
	if err != nil {
		return fmt.Errorf("initializing firebase app: %w", err)
	}
	log.Info().Str("credentials", o.CredentialsFile).Str("project", o.ProjectID).Msg("initialized firebase app")
	return nil
}

// Firestore returns a document store client. The caller closes it.
func (o *CredentialsOptions) Firestore(ctx context.Context) (*firestore.Client, error) {
	client, err := o.App.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting to firestore: %w", err)
	}
	return client, nil
}

// Auth returns an identity provider client
func (o *CredentialsOptions) Auth(ctx context.Context) (*auth.Client, error) {
	client, err := o.App.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting to firebase auth: %w", err)
	}
	return client, nil
}
