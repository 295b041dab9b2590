package repository

import "context"

const scopeSeparator = ":"

// scopedSettings prefixes every key with a namespace.
type scopedSettings struct {
	inner  SettingsRepo
	prefix string
}

// Scoped returns a SettingsRepo whose keys live under namespace.
// An empty namespace returns repo unchanged.
func Scoped(repo SettingsRepo, namespace string) SettingsRepo {
	if namespace == "" {
		return repo
	}
	return &scopedSettings{inner: repo, prefix: namespace + scopeSeparator}
}

func (s *scopedSettings) Get(ctx context.Context, key string) (string, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *scopedSettings) Set(ctx context.Context, key, value string) error {
	return s.inner.Set(ctx, s.prefix+key, value)
}
