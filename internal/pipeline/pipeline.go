// Package pipeline drives constant evaluation as a sequence of stages
// over a shared job: resolve associated-constant references, then
// materialize the vtables trait-object constants need. Stages run in
// order and keep going on errors so one job surfaces every failure.
package pipeline

import (
	"github.com/vela-lang/vela/internal/constcache"
	"github.com/vela-lang/vela/internal/consteval"
	"github.com/vela-lang/vela/internal/defs"
	"github.com/vela-lang/vela/internal/memory"
	"github.com/vela-lang/vela/internal/traits"
	"github.com/vela-lang/vela/internal/typesystem"
)

// ConstRequest asks for resolution of one associated-constant reference.
type ConstRequest struct {
	Item   defs.ItemID
	Substs []typesystem.Type
}

// ResolvedConst pairs a request with the concrete defining instance.
type ResolvedConst struct {
	Request  ConstRequest
	Instance defs.Instance
}

// VtableRequest asks for a vtable for one (concrete type, trait
// reference) pair.
type VtableRequest struct {
	Concrete typesystem.Type
	Ref      traits.Ref
}

// VtableResult pairs a request with the synthesized memory handle.
type VtableResult struct {
	Request VtableRequest
	Handle  memory.Pointer
}

// Job carries one batch of evaluation work through the stages.
type Job struct {
	Ctx *consteval.EvalContext

	Consts  []ConstRequest
	Vtables []VtableRequest

	Resolved []ResolvedConst
	Deferred []ConstRequest // not resolvable yet; retry after monomorphization
	Handles  []VtableResult
	Errors   []error
}

// Processor is one pipeline stage.
type Processor interface {
	Process(*Job) *Job
}

// Pipeline represents a sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Run executes the pipeline.
func (p *Pipeline) Run(job *Job) *Job {
	for _, processor := range p.processors {
		job = processor.Process(job)
		// Continue on errors to collect failures from all stages.
	}
	return job
}

// ResolveStage resolves associated-constant requests, consulting the
// persistent cache when one is configured. Deferrals are collected, not
// errored: the caller retries them after monomorphization.
type ResolveStage struct {
	Cache *constcache.Store
}

func (s *ResolveStage) Process(job *Job) *Job {
	for _, req := range job.Consts {
		key := constcache.Key(req.Item, req.Substs, job.Ctx.Target.Name)

		if s.Cache != nil {
			if entry, ok, err := s.Cache.Get(key); err == nil && ok {
				job.Resolved = append(job.Resolved, ResolvedConst{
					Request:  req,
					Instance: entry.Instance(job.Ctx.Defs, req.Item, req.Substs),
				})
				continue
			}
		}

		item, substs, ok, err := job.Ctx.ResolveAssociatedConst(req.Item, req.Substs)
		if err != nil {
			job.Errors = append(job.Errors, err)
			continue
		}
		if !ok {
			job.Deferred = append(job.Deferred, req)
			continue
		}
		job.Resolved = append(job.Resolved, ResolvedConst{
			Request:  req,
			Instance: defs.NewInstance(item, substs),
		})

		if s.Cache != nil {
			kind := constcache.EntryOriginal
			if item != req.Item {
				kind = constcache.EntryImplItem
			}
			// Cache write failures are not evaluation failures.
			_ = s.Cache.Put(key, constcache.Entry{Item: item, Kind: kind})
		}
	}
	return job
}

// VtableStage synthesizes all requested vtables.
type VtableStage struct{}

func (VtableStage) Process(job *Job) *Job {
	for _, req := range job.Vtables {
		handle, err := job.Ctx.SynthesizeVtable(req.Concrete, req.Ref)
		if err != nil {
			job.Errors = append(job.Errors, err)
			continue
		}
		job.Handles = append(job.Handles, VtableResult{Request: req, Handle: handle})
	}
	return job
}
