package common

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// AccountSession is a resolved, credential-scoped view of one AWS account.
// It is the unit handed to the audit runner: every criterion fetch goes
// through the service clients hanging off a session.
type AccountSession struct {
	// ProfileName is the name from ~/.aws/credentials or "default".
	ProfileName string

	// AccountID is the resolved AWS account ID for this session (via STS).
	// It is embedded in every persistent resource ID built during the audit.
	AccountID string

	// Region is the home region for this session's configuration.
	Region string

	// Config is the fully loaded AWS SDK v2 configuration.
	Config aws.Config

	// Clients holds initialised service clients scoped to this session's
	// home region. Use SessionProvider.ConfigForRegion plus a ClientFactory
	// to obtain region-scoped clients for per-region fan-out.
	Clients *ClientSet
}

// SessionProvider loads AWS sessions and resolves active regions. It is the
// sole entry point for credential and region management across the provider
// layer; how credentials are obtained (assumed role, environment, static) is
// entirely its concern and invisible to the engine.
//
// Implementations must use the AWS SDK v2 only. Never shell out to the aws CLI.
type SessionProvider interface {
	// GetSession returns an AccountSession for the named profile.
	// Pass an empty string for the default credential chain.
	GetSession(ctx context.Context, profile string) (*AccountSession, error)

	// GetAllSessions returns sessions for every profile found in
	// ~/.aws/credentials and ~/.aws/config, for multi-account sweeps.
	GetAllSessions(ctx context.Context) ([]*AccountSession, error)

	// GetActiveRegions returns all regions enabled for the session's account.
	// The list drives per-region request fan-out for regional criteria.
	GetActiveRegions(ctx context.Context, session *AccountSession) ([]string, error)

	// ConfigForRegion clones the session's config with the target region set.
	ConfigForRegion(session *AccountSession, region string) aws.Config
}
