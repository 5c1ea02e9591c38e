package cli

import (
	"fmt"
	"strings"

	"github.com/tnsengimana/autonomous-teams/internal/config"
	"github.com/tnsengimana/autonomous-teams/internal/store"
)

// loadStore loads the configuration and opens the database.
func loadStore() (*config.Config, *store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, s, nil
}

// parseOwnerRef parses "team:<id>" or "aide:<id>".
func parseOwnerRef(ref string) (store.OwnerRef, error) {
	kind, id, ok := strings.Cut(ref, ":")
	if !ok || id == "" {
		return store.OwnerRef{}, fmt.Errorf("owner must be team:<id> or aide:<id>, got %q", ref)
	}
	switch store.OwnerKind(kind) {
	case store.OwnerTeam, store.OwnerAide:
		return store.OwnerRef{Kind: store.OwnerKind(kind), ID: id}, nil
	default:
		return store.OwnerRef{}, fmt.Errorf("unknown owner kind %q", kind)
	}
}
