package meta

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"

	"github.com/bnema/craftctl/internal/download"
)

var (
	ErrUnknownVersion = errors.New("version not found in catalog")
	ErrNoEndpoint     = errors.New("endpoint not configured")
)

// Endpoints are the upstream metadata sources
type Endpoints struct {
	VersionManifest string `yaml:"version_manifest"`
	ForgeCatalog    string `yaml:"forge_catalog"`
	FabricLoader    string `yaml:"fabric_loader"`
	FabricMappings  string `yaml:"fabric_mappings"`
	FabricMaven     string `yaml:"fabric_maven"`
}

// DefaultEndpoints returns the public upstream services.
// There is no public forge catalog in the expected shape, it must be configured.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		VersionManifest: "https://launchermeta.mojang.com/mc/game/version_manifest.json",
		FabricLoader:    "https://maven.fabricmc.net/net/fabricmc/fabric-loader/maven-metadata.xml",
		FabricMappings:  "https://maven.fabricmc.net/net/fabricmc/yarn/maven-metadata.xml",
		FabricMaven:     "https://maven.fabricmc.net/",
	}
}

// Policy decides when a cached catalog must be fetched again
type Policy interface {
	Stale(fetchedAt, now time.Time) bool
}

type forever struct{}

func (forever) Stale(time.Time, time.Time) bool { return false }

// Forever keeps a catalog for the lifetime of the process
func Forever() Policy { return forever{} }

type ttl time.Duration

func (t ttl) Stale(fetchedAt, now time.Time) bool {
	return now.Sub(fetchedAt) >= time.Duration(t)
}

// TTL refetches a catalog once it is older than d
func TTL(d time.Duration) Policy { return ttl(d) }

// Options configures a Resolver
type Options struct {
	Endpoints  Endpoints
	Policy     Policy
	Clock      func() time.Time
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Resolver fetches upstream catalogs once and serves them from memory.
// Build one per process and share it.
type Resolver struct {
	endpoints Endpoints
	policy    Policy
	clock     func() time.Time
	client    *resty.Client
	log       *log.Logger

	manifest cached[[]manifestEntry]
	forge    cached[[]ForgeEntry]
	loaders  cached[[]FabricVersion]
	mappings cached[[]FabricVersion]
}

// New creates a resolver
func New(opts Options) *Resolver {
	if opts.Policy == nil {
		opts.Policy = Forever()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	var client *resty.Client
	if opts.HTTPClient != nil {
		client = resty.NewWithClient(opts.HTTPClient)
	} else {
		client = resty.New().SetTimeout(time.Minute)
	}
	client.SetHeader("User-Agent", download.UserAgent).SetRetryCount(1)

	return &Resolver{
		endpoints: opts.Endpoints,
		policy:    opts.Policy,
		clock:     opts.Clock,
		client:    client,
		log:       opts.Logger,
	}
}

// Endpoints returns the configured upstream sources
func (r *Resolver) Endpoints() Endpoints {
	return r.endpoints
}

type cached[T any] struct {
	mu        sync.Mutex
	value     T
	fetchedAt time.Time
	loaded    bool
}

// load returns the cached value, fetching it under the lock when absent or stale
// so concurrent first callers share one fetch.
func load[T any](ctx context.Context, r *Resolver, c *cached[T], fetch func(context.Context) (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := r.clock()
	if c.loaded && !r.policy.Stale(c.fetchedAt, now) {
		return c.value, nil
	}

	v, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	c.value = v
	c.fetchedAt = now
	c.loaded = true
	return v, nil
}

// get fetches url and returns the raw body
func (r *Resolver) get(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, ErrNoEndpoint
	}

	r.log.Debug("Fetching metadata", "url", url)

	resp, err := r.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, &download.NetworkError{URL: url, Err: err}
	}
	if resp.IsError() {
		return nil, &download.StatusError{URL: url, Code: resp.StatusCode()}
	}
	return resp.Body(), nil
}
