// Package routes translates an application's declared HTTP routes into
// gateway resources. The pipeline depends only on the Provider contract and
// never on how a route specification is located or produced.
package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Spec declares the HTTP surface of a function: route path (without leading
// slash, empty string for the root) to the methods served there.
type Spec struct {
	Name   string              `json:"name,omitempty"`
	Routes map[string][]string `json:"routes"`
}

// Paths returns the declared route paths in stable order.
func (s *Spec) Paths() []string {
	paths := make([]string, 0, len(s.Routes))
	for p := range s.Routes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// DeployedInfo is handed to a post-deploy hook after the gateway is live.
type DeployedInfo struct {
	ApiID       string
	ApiURL      string
	FunctionArn string
	Label       string
	Region      string
}

// Provider supplies a route specification. How the specification is
// located (file, embedded, generated) is the provider's concern.
type Provider interface {
	Config() (*Spec, error)
}

// PostDeployer is implemented by providers that expose a hook to run after
// the gateway stage is deployed. The returned values are captured into the
// run's deployment metadata.
type PostDeployer interface {
	PostDeploy(ctx context.Context, info DeployedInfo) (map[string]string, error)
}

// FileProvider reads a route specification from a JSON document.
type FileProvider struct {
	path string
}

// NewFileProvider creates a provider for the route spec at path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Path returns the spec file location, recorded in the descriptor as the
// gateway module reference.
func (p *FileProvider) Path() string {
	return p.path
}

func (p *FileProvider) Config() (*Spec, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("reading route spec %s: %w", p.path, err)
	}
	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing route spec %s: %w", p.path, err)
	}
	if len(spec.Routes) == 0 {
		return nil, fmt.Errorf("route spec %s declares no routes", p.path)
	}
	return &spec, nil
}
