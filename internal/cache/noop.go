package cache

import (
	"context"

	"github.com/signalsfoundry/sitecover/model"
)

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) (model.EnrichedSite, bool, error) {
	return model.EnrichedSite{}, false, nil
}
func (Noop) Set(context.Context, string, model.EnrichedSite) error { return nil }
func (Noop) Delete(context.Context, string) error                  { return nil }
func (Noop) Stats() Stats                                           { return Stats{} }
func (Noop) Close() error                                           { return nil }
