package rbac

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed roles.yaml
var defaultRoles []byte

// Role is a set of permissions with optional inheritance.
type Role struct {
	// Rank orders roles from least to most privileged. Members may only
	// grant roles of a rank not above their own.
	Rank        int      `yaml:"rank"`
	Permissions []string `yaml:"permissions"`
	Inherits    []string `yaml:"inherits"`
}

// RoleSource provides role definitions.
type RoleSource interface {
	Load(ctx context.Context) (map[string]Role, error)
}

// SourceFunc adapts a function to RoleSource.
type SourceFunc func(ctx context.Context) (map[string]Role, error)

func (f SourceFunc) Load(ctx context.Context) (map[string]Role, error) { return f(ctx) }

type definition struct {
	Roles map[string]Role `yaml:"roles"`
}

// YAMLSource decodes role definitions from r.
func YAMLSource(r io.Reader) RoleSource {
	return SourceFunc(func(context.Context) (map[string]Role, error) {
		var def definition
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, errors.Join(ErrInvalidDefinition, err)
		}
		if len(def.Roles) == 0 {
			return nil, fmt.Errorf("%w: no roles declared", ErrInvalidDefinition)
		}
		return def.Roles, nil
	})
}

// FileSource reads role definitions from a YAML file on each Load.
func FileSource(path string) RoleSource {
	return SourceFunc(func(ctx context.Context) (map[string]Role, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read roles file: %w", err)
		}
		return YAMLSource(bytes.NewReader(data)).Load(ctx)
	})
}

// DefaultSource returns the built-in owner, admin, editor and viewer roles.
func DefaultSource() RoleSource {
	return SourceFunc(func(ctx context.Context) (map[string]Role, error) {
		return YAMLSource(bytes.NewReader(defaultRoles)).Load(ctx)
	})
}
