// Package credentials selects how the GCS client authenticates.
package credentials

import (
	"fmt"

	"google.golang.org/api/option"

	"github.com/jittakal/kafobjectsink/internal/errors"
)

// Source is one of FromPath, FromJSON or Default.
type Source interface {
	// ClientOptions returns the client options that apply the credentials.
	ClientOptions() []option.ClientOption

	// String describes the source without revealing secrets.
	String() string

	isSource()
}

// FromPath reads a service account key file.
type FromPath struct {
	Path string
}

// FromJSON uses an inline service account key.
type FromJSON struct {
	JSON []byte
}

// Default uses application default credentials from the environment.
type Default struct{}

// NewSource builds the credential source from the two configuration values.
// Setting both is a configuration error; setting neither selects Default.
func NewSource(path, json string) (Source, error) {
	switch {
	case path != "" && json != "":
		return nil, errors.ErrConflictingCredentials
	case path != "":
		return FromPath{Path: path}, nil
	case json != "":
		return FromJSON{JSON: []byte(json)}, nil
	default:
		return Default{}, nil
	}
}

// ClientOptions returns option.WithCredentialsFile for the path.
func (s FromPath) ClientOptions() []option.ClientOption {
	return []option.ClientOption{option.WithCredentialsFile(s.Path)}
}

func (s FromPath) String() string { return fmt.Sprintf("file %s", s.Path) }

func (FromPath) isSource() {}

// ClientOptions returns option.WithCredentialsJSON for the inline key.
func (s FromJSON) ClientOptions() []option.ClientOption {
	return []option.ClientOption{option.WithCredentialsJSON(s.JSON)}
}

func (s FromJSON) String() string { return fmt.Sprintf("inline json (%d bytes)", len(s.JSON)) }

func (FromJSON) isSource() {}

// ClientOptions returns no options; the client discovers credentials itself.
func (Default) ClientOptions() []option.ClientOption { return nil }

func (Default) String() string { return "application default credentials" }

func (Default) isSource() {}
