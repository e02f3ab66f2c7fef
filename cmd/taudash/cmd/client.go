package cmd

import (
	"context"
	"fmt"

	"github.com/autoperf/taudash/internal/clientstate"
	"github.com/autoperf/taudash/internal/remote"
)

var serverURL string

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (overrides [client] url)")
}

// newRemoteClient builds an API client from the [client] config section.
func newRemoteClient() (*remote.Client, error) {
	timeout, err := cfg.ClientTimeout()
	if err != nil {
		return nil, err
	}
	url := cfg.Client.URL
	if serverURL != "" {
		url = serverURL
	}
	c, err := remote.New(remote.Config{
		URL:           url,
		APIKey:        cfg.Client.APIKey,
		AllowInsecure: cfg.Client.AllowInsecure,
		Timeout:       timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return c, nil
}

// openClientState opens the profile and selection cache database.
func openClientState() (*clientstate.Store, error) {
	st, err := clientstate.Open(cfg.StateDBPath())
	if err != nil {
		return nil, fmt.Errorf("open client state: %w", err)
	}
	return st, nil
}

// activeCredentials returns the login fields of the named profile, or of
// the active profile when name is empty, falling back to [datasource]
// defaults. The returned name is empty when no profile applies.
func activeCredentials(ctx context.Context, st *clientstate.Store, name string) (remote.Credentials, string, error) {
	creds := remote.Credentials{
		Driver: cfg.Datasource.Driver,
		Host:   cfg.Datasource.DBHost,
		Name:   cfg.Datasource.DBName,
		User:   cfg.Datasource.DBUser,
	}
	if name == "" {
		active, err := st.Active(ctx)
		if err != nil {
			return creds, "", err
		}
		name = active
	}
	if name == "" {
		return creds, "", nil
	}
	sess, ok, err := st.GetSession(ctx, name)
	if err != nil {
		return creds, "", err
	}
	if !ok {
		return creds, "", fmt.Errorf("no saved profile %q (see 'taudash list-profiles')", name)
	}
	if sess.Driver != "" {
		creds.Driver = sess.Driver
	}
	creds.Host, creds.Name, creds.User = sess.DBHost, sess.DBName, sess.DBUser
	return creds, name, nil
}
