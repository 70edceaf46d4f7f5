package store

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Open builds the Store described by dsn. A DSN without a scheme is a file
// path.
func Open(ctx context.Context, dsn string) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty DSN", ErrInvalidDSN)
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDSN, err)
	}

	switch scheme := strings.ToLower(parsed.Scheme); scheme {
	case "", "file":
		path, err := dsnPath(parsed, dsn)
		if err != nil {
			return nil, err
		}
		return NewFileStore(path), nil
	case "memory", "mem":
		return NewMemoryStore(), nil
	case "sqlite", "sqlite3":
		path, err := dsnPath(parsed, dsn)
		if err != nil {
			return nil, err
		}
		return OpenSQLite(path, DefaultSQLiteOptions())
	case "postgres", "postgresql":
		return NewPostgresStore(dsn)
	case "s3":
		cfg, err := parseS3DSN(parsed)
		if err != nil {
			return nil, err
		}
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
}

// dsnPath extracts a filesystem path from a file or sqlite DSN.
func dsnPath(parsed *url.URL, raw string) (string, error) {
	if parsed.Scheme == "" {
		return raw, nil
	}
	path := parsed.Path
	if parsed.Host != "" && parsed.Host != "localhost" {
		// file://relative/path.json
		path = parsed.Host + path
	}
	if path == "" {
		path = parsed.Opaque
	}
	if path == "" {
		return "", fmt.Errorf("%w: no path in %q", ErrInvalidDSN, raw)
	}
	return path, nil
}

// parseS3DSN parses s3://bucket/key?region=...&endpoint=...&pathStyle=true.
func parseS3DSN(u *url.URL) (S3Config, error) {
	cfg := S3Config{
		Bucket:   u.Host,
		Key:      strings.TrimPrefix(u.Path, "/"),
		Region:   u.Query().Get("region"),
		Endpoint: u.Query().Get("endpoint"),
	}
	if cfg.Bucket == "" {
		return S3Config{}, fmt.Errorf("%w: s3 bucket is required", ErrInvalidDSN)
	}
	if v := u.Query().Get("pathStyle"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return S3Config{}, fmt.Errorf("%w: pathStyle: %w", ErrInvalidDSN, err)
		}
		cfg.PathStyle = b
	}
	return cfg, nil
}
