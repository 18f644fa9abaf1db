// Package catalog keeps an index of onboarded CSAR packages in Redis.
//
// Each descriptor is stored as JSON under nfvpack:package:<name>:<version>.
// nfvpack:packages holds the known names and nfvpack:versions:<name> the
// versions of one name.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/nfvpack/nfvpack/pkg/csar"
	"github.com/nfvpack/nfvpack/pkg/util"
)

// DefaultAddr is used when no catalog address is configured.
const DefaultAddr = "127.0.0.1:6379"

const keyPrefix = "nfvpack:"

// Descriptor summarises an onboarded package. Artifacts themselves are never
// stored.
type Descriptor struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Author      string    `json:"author"`
	Description string    `json:"description,omitempty"`
	Entry       string    `json:"entry"`
	CSARVersion string    `json:"csar_version,omitempty"`
	Digest      string    `json:"digest"`
	Size        int64     `json:"size"`
	NodeCount   int       `json:"node_count"`
	GroupCount  int       `json:"group_count"`
	Files       int       `json:"files"`
	OnboardedAt time.Time `json:"onboarded_at"`
}

// NewDescriptor summarises an opened package.
func NewDescriptor(p *csar.Package) (*Descriptor, error) {
	st, err := p.Template()
	if err != nil {
		return nil, fmt.Errorf("reading entry template: %w", err)
	}
	d := &Descriptor{
		Name:        util.SanitizeName(p.TemplateName()),
		Version:     util.SanitizeName(util.CoalesceString(p.TemplateVersion(), p.Version())),
		Author:      util.CoalesceString(st.Metadata.TemplateAuthor, p.Author()),
		Description: p.Description(),
		Entry:       p.EntryDefinitions(),
		CSARVersion: p.Version(),
		Digest:      p.Digest(),
		Size:        p.Size(),
		Files:       len(p.Files()),
	}
	if p.Meta() == nil {
		d.CSARVersion = ""
	}
	if tt := st.TopologyTemplate; tt != nil {
		d.NodeCount = len(tt.NodeTemplates)
		d.GroupCount = len(tt.Groups)
	}
	if d.Name == "" || d.Version == "" {
		return nil, util.NewValidationError("package has no template name or version")
	}
	return d, nil
}

// Catalog is a Redis-backed package index.
type Catalog struct {
	client *redis.Client
	now    func() time.Time
}

// New creates a catalog for the Redis server at addr.
func New(addr string) *Catalog {
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr:         util.CoalesceString(addr, DefaultAddr),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}))
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) *Catalog {
	return &Catalog{client: client, now: time.Now}
}

// Connect tests the connection.
func (c *Catalog) Connect(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("catalog connection failed: %w", err)
	}
	return nil
}

// Close closes the connection.
func (c *Catalog) Close() error {
	return c.client.Close()
}

func packageKey(name, version string) string {
	return keyPrefix + "package:" + name + ":" + version
}

func versionsKey(name string) string {
	return keyPrefix + "versions:" + name
}

const namesKey = keyPrefix + "packages"

// Onboard records a descriptor. Onboarding the same name, version and digest
// again returns the stored descriptor; a different digest under the same name
// and version fails with util.ErrAlreadyExists.
func (c *Catalog) Onboard(ctx context.Context, d *Descriptor) (*Descriptor, bool, error) {
	if d.Name == "" || d.Version == "" {
		return nil, false, util.NewValidationError("descriptor needs a name and a version")
	}
	rec := *d
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.OnboardedAt.IsZero() {
		rec.OnboardedAt = c.now().UTC()
	}
	data, err := json.Marshal(&rec)
	if err != nil {
		return nil, false, err
	}

	key := packageKey(rec.Name, rec.Version)
	created, err := c.client.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		return nil, false, fmt.Errorf("storing %s: %w", key, err)
	}
	if !created {
		existing, err := c.Get(ctx, rec.Name, rec.Version)
		if err != nil {
			return nil, false, err
		}
		if existing.Digest != rec.Digest {
			return nil, false, fmt.Errorf("%s %s with digest %.12s: %w",
				rec.Name, rec.Version, existing.Digest, util.ErrAlreadyExists)
		}
		return existing, false, nil
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, namesKey, rec.Name)
		pipe.SAdd(ctx, versionsKey(rec.Name), rec.Version)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("indexing %s: %w", key, err)
	}
	util.WithDescriptor(rec.Name, rec.Version).
		Infof("Onboarded %s", rec.ID)
	return &rec, true, nil
}

// Get returns one descriptor.
func (c *Catalog) Get(ctx context.Context, name, version string) (*Descriptor, error) {
	data, err := c.client.Get(ctx, packageKey(name, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("package %s %s: %w", name, version, util.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decoding %s %s: %w", name, version, err)
	}
	return &d, nil
}

// Versions returns the versions of a package, oldest first.
func (c *Catalog) Versions(ctx context.Context, name string) ([]string, error) {
	versions, err := c.client.SMembers(ctx, versionsKey(name)).Result()
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("package %s: %w", name, util.ErrNotFound)
	}
	SortVersions(versions)
	return versions, nil
}

// Latest returns the descriptor with the highest version.
func (c *Catalog) Latest(ctx context.Context, name string) (*Descriptor, error) {
	versions, err := c.Versions(ctx, name)
	if err != nil {
		return nil, err
	}
	return c.Get(ctx, name, versions[len(versions)-1])
}

// List returns the latest descriptor of every package, sorted by name.
func (c *Catalog) List(ctx context.Context) ([]*Descriptor, error) {
	names, err := c.client.SMembers(ctx, namesKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	out := make([]*Descriptor, 0, len(names))
	for _, name := range names {
		d, err := c.Latest(ctx, name)
		if errors.Is(err, util.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Delete removes one version. The name is dropped with its last version.
func (c *Catalog) Delete(ctx context.Context, name, version string) error {
	n, err := c.client.Del(ctx, packageKey(name, version)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("package %s %s: %w", name, version, util.ErrNotFound)
	}
	if err := c.client.SRem(ctx, versionsKey(name), version).Err(); err != nil {
		return err
	}
	left, err := c.client.SCard(ctx, versionsKey(name)).Result()
	if err != nil {
		return err
	}
	if left == 0 {
		if err := c.client.SRem(ctx, namesKey, name).Err(); err != nil {
			return err
		}
	}
	util.WithDescriptor(name, version).Infof("Deleted")
	return nil
}

// SortVersions orders versions by semantic version. Strings that are not
// versions sort before all versions, lexically among themselves.
func SortVersions(versions []string) {
	parsed := make(map[string]*semver.Version, len(versions))
	for _, v := range versions {
		if sv, err := semver.NewVersion(v); err == nil {
			parsed[v] = sv
		}
	}
	sort.SliceStable(versions, func(i, j int) bool {
		a, b := parsed[versions[i]], parsed[versions[j]]
		switch {
		case a == nil && b == nil:
			return versions[i] < versions[j]
		case a == nil:
			return true
		case b == nil:
			return false
		}
		return a.LessThan(b)
	})
}
