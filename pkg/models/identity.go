package models

import (
	"fmt"
	"strings"
)

// Identity is one candidate login on the remote host: the SSH username and
// the name used to greet whoever authenticated as it.
type Identity struct {
	Username    string `yaml:"username"     mapstructure:"username"`
	DisplayName string `yaml:"display_name" mapstructure:"display_name"`
}

// DefaultIdentities are the admin accounts on the remote host, in the order
// they are tried.
var DefaultIdentities = []Identity{
	{Username: "sar", DisplayName: "Sam"},
	{Username: "mja", DisplayName: "Mitch"},
	{Username: "dsw", DisplayName: "Dean"},
	{Username: "tml", DisplayName: "Tom"},
	{Username: "jst", DisplayName: "Josh"},
}

// Greeting returns the welcome line printed once a session is bound.
func (i Identity) Greeting() string {
	name := i.DisplayName
	if name == "" {
		name = i.Username
	}
	return fmt.Sprintf("Welcome %s!", name)
}

func (i Identity) String() string {
	if i.DisplayName == "" {
		return i.Username
	}
	return fmt.Sprintf("%s (%s)", i.Username, i.DisplayName)
}

// ParseIdentity reads "user" or "user:Display Name".
func ParseIdentity(value string) (Identity, error) {
	username, display, _ := strings.Cut(value, ":")
	username = strings.TrimSpace(username)
	if username == "" {
		return Identity{}, fmt.Errorf("invalid identity %q: username is empty", value)
	}
	return Identity{Username: username, DisplayName: strings.TrimSpace(display)}, nil
}

func ParseIdentities(values []string) ([]Identity, error) {
	ids := make([]Identity, 0, len(values))
	for _, value := range values {
		id, err := ParseIdentity(value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
