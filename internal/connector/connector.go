// Package connector defines the source connector contract shared by every
// prop and sentiment provider.
package connector

import (
	"context"

	"github.com/ibeckermayer/sharpwatch/internal/types"
)

// PropBatch is one fetch from a prop source. Found counts upstream
// candidates seen (events, cards) so extraction rate can be computed.
type PropBatch struct {
	Props []types.ScrapedProp
	Found int
}

// SentimentBatch is one fetch from a social source. Found counts posts seen
// before any filtering.
type SentimentBatch struct {
	Records []types.SentimentRecord
	Found   int
}

// Connector is the common shape of every source.
type Connector interface {
	// Name is the stable source name used for quality metrics.
	Name() string
	// Available reports whether the connector is configured to run.
	Available() bool
}

// PropConnector fetches prop lines. An error means the whole fetch failed;
// malformed individual entries are skipped instead.
type PropConnector interface {
	Connector
	FetchProps(ctx context.Context) (PropBatch, error)
}

// SentimentConnector fetches raw social posts.
type SentimentConnector interface {
	Connector
	FetchSentiment(ctx context.Context) (SentimentBatch, error)
}

// Registry holds connectors in registration order.
type Registry struct {
	props     []PropConnector
	sentiment []SentimentConnector
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) AddProps(cs ...PropConnector) {
	r.props = append(r.props, cs...)
}

func (r *Registry) AddSentiment(cs ...SentimentConnector) {
	r.sentiment = append(r.sentiment, cs...)
}

// PropConnectors returns the available prop connectors in order.
func (r *Registry) PropConnectors() []PropConnector {
	out := make([]PropConnector, 0, len(r.props))
	for _, c := range r.props {
		if c.Available() {
			out = append(out, c)
		}
	}
	return out
}

// SentimentConnectors returns the available sentiment connectors in order.
func (r *Registry) SentimentConnectors() []SentimentConnector {
	out := make([]SentimentConnector, 0, len(r.sentiment))
	for _, c := range r.sentiment {
		if c.Available() {
			out = append(out, c)
		}
	}
	return out
}

// Names lists every registered connector with its availability.
func (r *Registry) Names() map[string]bool {
	names := make(map[string]bool, len(r.props)+len(r.sentiment))
	for _, c := range r.props {
		names[c.Name()] = c.Available()
	}
	for _, c := range r.sentiment {
		names[c.Name()] = c.Available()
	}
	return names
}
