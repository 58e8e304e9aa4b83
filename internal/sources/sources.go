// Package sources defines the parser contract and the source catalog.
// Batch sources expose a Parser that returns a full batch of postings per
// run; workflow sources orchestrate their own queue jobs through a
// scheduler callback.
package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/phuslu/log"

	"github.com/opencruit/crawler/internal/ingest"
)

// Kind says how a source is driven.
type Kind string

const (
	KindBatch    Kind = "batch"
	KindWorkflow Kind = "workflow"
)

// Manifest identifies a parser and its default schedule.
type Manifest struct {
	ID       string
	Name     string
	Version  string
	Schedule string
}

// Parser produces one batch of raw postings per invocation.
type Parser interface {
	Manifest() Manifest
	Parse(ctx context.Context) ([]ingest.RawPosting, error)
}

// RuntimePolicy is the per-source queue retry budget.
type RuntimePolicy struct {
	Attempts    int
	Backoff     time.Duration
	Concurrency int
}

// Enqueuer is the queue surface workflow setup needs; *queue.Client
// satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName, id string, payload any) (bool, error)
}

// CronRegistrar registers a named recurring task.
type CronRegistrar interface {
	Schedule(spec, name string, run func(context.Context)) error
}

// RoleLister yields the professional-role ids a workflow source fans out
// over; *hh.Client satisfies it.
type RoleLister interface {
	ITRoleIDs(ctx context.Context) ([]string, error)
}

// WorkflowOptions tune a workflow source's recurring jobs.
type WorkflowOptions struct {
	IndexCron         string
	RefreshCron       string
	RefreshBatchSize  int
	BootstrapIndexNow bool
}

// WorkflowContext carries the collaborators handed to SetupScheduler.
type WorkflowContext struct {
	Registrar CronRegistrar
	Queue     Enqueuer
	Roles     RoleLister
	Options   WorkflowOptions
	Logger    log.Logger
	Now       func() time.Time
}

// WorkflowResult reports what a workflow source registered.
type WorkflowResult struct {
	Stats map[string]any
}

// SetupFunc wires a workflow source's recurring jobs.
type SetupFunc func(ctx context.Context, wc WorkflowContext) (WorkflowResult, error)

// Definition describes one source in the catalog. Exactly one of Parser
// (batch) or SetupScheduler (workflow) is set.
type Definition struct {
	ID             string
	Kind           Kind
	Runtime        RuntimePolicy
	Schedule       string
	Parser         Parser
	SetupScheduler SetupFunc
}

// Catalog is the registry of known sources.
type Catalog struct {
	defs []Definition
	byID map[string]Definition
}

// NewCatalog builds a catalog, rejecting duplicate ids and malformed
// definitions.
func NewCatalog(defs ...Definition) (*Catalog, error) {
	byID := make(map[string]Definition, len(defs))
	for _, def := range defs {
		if def.ID == "" {
			return nil, fmt.Errorf("source definition missing id")
		}
		if _, ok := byID[def.ID]; ok {
			return nil, fmt.Errorf("duplicate source id: %s", def.ID)
		}
		switch def.Kind {
		case KindBatch:
			if def.Parser == nil {
				return nil, fmt.Errorf("batch source %s missing parser", def.ID)
			}
		case KindWorkflow:
			if def.SetupScheduler == nil {
				return nil, fmt.Errorf("workflow source %s missing scheduler setup", def.ID)
			}
		default:
			return nil, fmt.Errorf("source %s has unknown kind %q", def.ID, def.Kind)
		}
		byID[def.ID] = def
	}
	return &Catalog{defs: defs, byID: byID}, nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := NewCatalog(
		Definition{
			ID:      "remoteok",
			Kind:    KindBatch,
			Runtime: RuntimePolicy{Attempts: 3, Backoff: 5 * time.Second},
			Parser:  NewRemoteOKParser(),
		},
		Definition{
			ID:      "weworkremotely",
			Kind:    KindBatch,
			Runtime: RuntimePolicy{Attempts: 3, Backoff: 5 * time.Second},
			Parser:  NewWeWorkRemotelyParser(),
		},
		Definition{
			ID:             "hh",
			Kind:           KindWorkflow,
			Runtime:        RuntimePolicy{Attempts: 4, Backoff: 5 * time.Second},
			SetupScheduler: SetupHHScheduler,
		},
	)
	if err != nil {
		// the built-in catalog is static; a bad entry is a programming error
		panic(err)
	}
	return c
}

// All returns every definition in registration order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Batch returns the batch-kind definitions.
func (c *Catalog) Batch() []Definition {
	var out []Definition
	for _, def := range c.defs {
		if def.Kind == KindBatch {
			out = append(out, def)
		}
	}
	return out
}

// Workflow returns the workflow-kind definitions.
func (c *Catalog) Workflow() []Definition {
	var out []Definition
	for _, def := range c.defs {
		if def.Kind == KindWorkflow {
			out = append(out, def)
		}
	}
	return out
}

// ByID looks up one definition.
func (c *Catalog) ByID(id string) (Definition, bool) {
	def, ok := c.byID[id]
	return def, ok
}
