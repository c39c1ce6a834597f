package cli

import (
	"context"
	"fmt"

	"github.com/vietddude/mintwatch/internal/control"
	"github.com/vietddude/mintwatch/internal/core/config"
	"github.com/vietddude/mintwatch/internal/core/domain"
	"github.com/vietddude/mintwatch/internal/core/tracker"
)

// editState loads the persisted addresses into a tracker, applies fn and
// saves the document when fn changed anything. The method cache is kept
// as loaded.
func editState(ctx context.Context, cfg *config.AppConfig, fn func(t *tracker.Tracker) error) error {
	stores, err := control.OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	state, err := stores.State.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	t := tracker.New()
	t.Load(state.Addresses)
	before := t.Version()

	if err := fn(t); err != nil {
		return err
	}
	if t.Version() == before {
		return nil
	}

	updated := &domain.State{
		Addresses:   t.List(),
		MethodCache: state.MethodCache,
	}
	if err := stores.State.Save(ctx, updated); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}
