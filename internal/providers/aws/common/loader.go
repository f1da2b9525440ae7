package common

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// DefaultSessionProvider is the production implementation of SessionProvider.
// It reads credentials from the standard AWS shared config and credentials
// files (~/.aws/config and ~/.aws/credentials) using the AWS SDK v2.
//
// Inject a custom ClientFactory via NewDefaultSessionProviderWithFactory to
// replace real SDK clients with fakes in unit tests.
type DefaultSessionProvider struct {
	factory ClientFactory
}

// NewDefaultSessionProvider returns a provider backed by the real AWS SDK.
func NewDefaultSessionProvider() *DefaultSessionProvider {
	return &DefaultSessionProvider{factory: NewClientSet}
}

// NewDefaultSessionProviderWithFactory returns a provider that uses f to
// create its ClientSet. Pass a fake factory in tests.
func NewDefaultSessionProviderWithFactory(f ClientFactory) *DefaultSessionProvider {
	return &DefaultSessionProvider{factory: f}
}

// GetSession loads the AWS SDK config for the named profile and returns a
// fully populated AccountSession including the resolved account ID and
// initialised service clients.
//
// Pass an empty string to load the default profile.
func (p *DefaultSessionProvider) GetSession(ctx context.Context, profile string) (*AccountSession, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS profile %q: %w", profileDisplayName(profile), err)
	}

	// Fall back to us-east-1 when the profile has no region configured so
	// that all SDK clients can be constructed successfully.
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	clients := p.factory(cfg)

	accountID, err := resolveAccountID(ctx, clients.STS)
	if err != nil {
		return nil, fmt.Errorf("resolve account ID for profile %q: %w", profileDisplayName(profile), err)
	}

	return &AccountSession{
		ProfileName: profileDisplayName(profile),
		AccountID:   accountID,
		Region:      cfg.Region,
		Config:      cfg,
		Clients:     clients,
	}, nil
}

// GetAllSessions discovers every profile defined in ~/.aws/credentials and
// ~/.aws/config, loads each one, and returns the successfully loaded set.
// Profiles that cannot be loaded (missing credentials, invalid config, etc.)
// are skipped so one bad profile does not block a multi-account sweep.
func (p *DefaultSessionProvider) GetAllSessions(ctx context.Context) ([]*AccountSession, error) {
	names, err := discoverProfileNames()
	if err != nil {
		return nil, fmt.Errorf("discover AWS profiles: %w", err)
	}

	var sessions []*AccountSession
	for _, name := range names {
		// GetSession uses an empty string for the default profile.
		arg := ""
		if name != "default" {
			arg = name
		}

		session, loadErr := p.GetSession(ctx, arg)
		if loadErr != nil {
			continue
		}
		sessions = append(sessions, session)
	}

	return sessions, nil
}

// GetActiveRegions returns all AWS regions that are enabled (opted-in) for
// the session's account. It uses EC2 DescribeRegions, which is a global call
// and works correctly regardless of the client's home region.
func (p *DefaultSessionProvider) GetActiveRegions(ctx context.Context, session *AccountSession) ([]string, error) {
	out, err := session.Clients.EC2.DescribeRegions(ctx, &ec2.DescribeRegionsInput{
		// AllRegions false (default) returns only regions the account has
		// opted into; it excludes disabled / not-subscribed regions.
		AllRegions: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("describe regions for profile %q: %w", session.ProfileName, err)
	}

	regions := make([]string, 0, len(out.Regions))
	for _, r := range out.Regions {
		if r.RegionName != nil {
			regions = append(regions, *r.RegionName)
		}
	}
	return regions, nil
}

// ConfigForRegion returns a copy of the session's config with Region set.
// Use the returned aws.Config to construct region-scoped SDK clients for
// per-region criterion requests.
func (p *DefaultSessionProvider) ConfigForRegion(session *AccountSession, region string) aws.Config {
	regional := session.Config
	regional.Region = region
	return regional
}

// profileDisplayName returns a human-readable profile identifier. An empty
// string (the default profile) is shown as "default".
func profileDisplayName(profile string) string {
	if profile == "" {
		return "default"
	}
	return profile
}

// resolveAccountID calls STS GetCallerIdentity to retrieve the numeric AWS
// account ID for the credentials currently loaded in stsClient.
func resolveAccountID(ctx context.Context, stsClient STSClient) (string, error) {
	out, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("STS GetCallerIdentity: %w", err)
	}
	if out.Account == nil {
		return "", fmt.Errorf("STS GetCallerIdentity returned nil account")
	}
	return aws.ToString(out.Account), nil
}

// discoverProfileNames reads ~/.aws/credentials and ~/.aws/config and returns
// the deduplicated list of all profile names found. "default" is always
// normalised to the string "default".
func discoverProfileNames() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	// ~/.aws/credentials: section headers are the bare profile name.
	credProfiles, err := parseProfilesFromFile(
		filepath.Join(home, ".aws", "credentials"),
		false, // no prefix to strip
	)
	if err != nil {
		return nil, err
	}

	// ~/.aws/config: non-default profiles are prefixed with "profile ".
	cfgProfiles, err := parseProfilesFromFile(
		filepath.Join(home, ".aws", "config"),
		true, // strip "profile " prefix
	)
	if err != nil {
		return nil, err
	}

	// Merge, preserving order and deduplicating.
	seen := make(map[string]bool)
	var all []string
	for _, name := range append(credProfiles, cfgProfiles...) {
		if name == "" {
			continue
		}
		if !seen[name] {
			seen[name] = true
			all = append(all, name)
		}
	}
	return all, nil
}

// parseProfilesFromFile scans path for INI section headers ([...]) and
// returns the profile name from each header.
//
// When stripProfilePrefix is true, the "profile " prefix used in
// ~/.aws/config is removed (e.g. "[profile staging]" becomes "staging").
// The "[default]" section is always returned as "default" unchanged.
//
// If the file does not exist, nil is returned without an error.
func parseProfilesFromFile(path string, stripProfilePrefix bool) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var profiles []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Section headers look like [name] or [profile name].
		if !strings.HasPrefix(line, "[") || !strings.HasSuffix(line, "]") {
			continue
		}

		name := line[1 : len(line)-1] // strip surrounding brackets

		// ~/.aws/config uses "[profile <name>]" for non-default profiles.
		if stripProfilePrefix && name != "default" {
			name = strings.TrimPrefix(name, "profile ")
		}

		profiles = append(profiles, strings.TrimSpace(name))
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	return profiles, nil
}
