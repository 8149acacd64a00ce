package options

import (
	"crypto/tls"

	"github.com/authzed/authzed-go/v1"
	"github.com/authzed/grpcutil"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/tallyworks/datamigrator/pkg/authz"
)

// SpiceDBOptions holds options for the optional authorization mirror. The
// mirror is off unless an endpoint is given.
type SpiceDBOptions struct {
	SpiceDBEndpoint  string
	SpiceDBToken     string
	SpiceDBInsecure  bool
	SpiceDBBatchSize int

	Client authz.Client
}

// Enabled reports whether relationships should be mirrored
func (o *SpiceDBOptions) Enabled() bool {
	return o.Client != nil || o.SpiceDBEndpoint != ""
}

// Complete dials SpiceDB when an endpoint is set. In a dry run no client is
// created and the mirror only logs.
func (o *SpiceDBOptions) Complete(dryRun bool) (err error) {
	if dryRun || !o.Enabled() {
		return nil
	}
	if o.Client != nil {
		log.Debug().Msg("spicedb client already configured, skipping client option validation")
		return nil
	}
	grpcOpts := make([]grpc.DialOption, 0)
	if o.SpiceDBInsecure {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})))
	}
	if o.SpiceDBToken != "" && o.SpiceDBInsecure {
		grpcOpts = append(grpcOpts, grpcutil.WithInsecureBearerToken(o.SpiceDBToken))
	}
	if o.SpiceDBToken != "" && !o.SpiceDBInsecure {
		grpcOpts = append(grpcOpts, grpcutil.WithBearerToken(o.SpiceDBToken))
	}
	client, err := authzed.NewClient(o.SpiceDBEndpoint, grpcOpts...)
	if err != nil {
		return err
	}
	o.Client = client
	return nil
}

// Mirror returns the authorization mirror, or nil when it is disabled
func (o *SpiceDBOptions) Mirror(dryRun bool) *authz.Mirror {
	if !o.Enabled() {
		return nil
	}
	var client authz.Client
	if !dryRun {
		client = o.Client
	}
	return authz.NewMirror(
		authz.NewRelationshipWriter(client, o.SpiceDBBatchSize),
		authz.NewSchemaAppendWriter(o.Client, dryRun),
	)
}
