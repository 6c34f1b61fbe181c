package anonymizer

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ContextSource supplies previously seen rows that share a schema. They are
// added to every k-map reference population.
type ContextSource interface {
	Lookup(ctx context.Context, schema Schema) ([]ObjectData, error)
}

// Options configures an Anonymizer
type Options struct {
	ConflictPolicy ConflictPolicy
	ContextSource  ContextSource
}

// Anonymizer compiles requests into jobs, runs them on the engine and
// reconciles the outcome. It holds no per-request state and is safe for
// concurrent use.
type Anonymizer struct {
	engine  Engine
	logger  *zap.Logger
	options Options
}

// New creates an Anonymizer around engine
func New(engine Engine, logger *zap.Logger, options Options) *Anonymizer {
	if options.ConflictPolicy == "" {
		options.ConflictPolicy = ConflictLastWriteWins
	}
	return &Anonymizer{
		engine:  engine,
		logger:  logger,
		options: options,
	}
}

// AnonymizeAttributes processes a flat-attribute request
func (a *Anonymizer) AnonymizeAttributes(ctx context.Context, req *AttributeRequest) (*Result, error) {
	if err := ValidateAttributeRequest(req); err != nil {
		return nil, err
	}

	hierarchy, err := BuildFlatHierarchy(req.Data)
	if err != nil {
		return nil, err
	}
	hierarchies := Hierarchies{FlatAttributeName: hierarchy}
	table := FlatTable(req.Data)

	return a.run(ctx, "attributes", table, FlatObjects(req.Data), hierarchies, req.Pets)
}

// AnonymizeObjects processes a composite-object request
func (a *Anonymizer) AnonymizeObjects(ctx context.Context, req *ObjectRequest) (*Result, error) {
	if err := ValidateObjectRequest(req); err != nil {
		return nil, err
	}

	schema, err := InferSchema(req.Data)
	if err != nil {
		return nil, err
	}

	hierarchies, err := BuildObjectHierarchies(req.Data, a.options.ConflictPolicy)
	if err != nil {
		return nil, err
	}

	table, err := AssembleTable(schema, req.Data)
	if err != nil {
		return nil, err
	}

	return a.run(ctx, "objects", table, req.Data, hierarchies, req.Pets)
}

func (a *Anonymizer) run(ctx context.Context, shape string, table *Table, objects []ObjectData, hierarchies Hierarchies, pets []Pet) (*Result, error) {
	log := a.logger.With(zap.String("shape", shape))

	if err := checkCoverage(table, hierarchies); err != nil {
		return nil, err
	}

	compiler := NewConstraintCompiler(table, objects, hierarchies)
	if a.options.ContextSource != nil && requestsKMap(pets) {
		stored, err := a.options.ContextSource.Lookup(ctx, table.Schema)
		if err != nil {
			log.Warn("Context lookup failed, continuing without stored context", zap.Error(err))
			stored = nil
		}
		usable := usableContext(table.Schema, stored)
		if skipped := len(stored) - len(usable); skipped > 0 {
			log.Warn("Skipping stored context rows that do not fit the schema", zap.Int("skipped", skipped))
		}
		if len(usable) > 0 {
			compiler.WithExtraContext(usable)
			log.Debug("Stored context added to reference population", zap.Int("rows", len(usable)))
		}
	}

	constraints, ignored, err := compiler.Compile(pets)
	if err != nil {
		return nil, err
	}
	if len(ignored) > 0 {
		log.Info("Ignoring unknown privacy schemes", zap.Strings("schemes", ignored))
	}
	if len(constraints) == 0 {
		return nil, validationErrorf("no recognized pets in request")
	}

	job := &Job{
		Schema:      table.Schema,
		Table:       table,
		Hierarchies: hierarchies,
		Constraints: constraints,
	}

	log.Debug("Job compiled",
		zap.Strings("attributes", table.Schema.Names()),
		zap.Int("rows", table.Len()),
		zap.Int("hierarchies", len(hierarchies)),
		zap.Strings("schemes", schemeNamesOf(constraints)),
	)

	start := time.Now()
	outcome, err := a.engine.Solve(ctx, job)
	if err != nil {
		log.Error("Engine failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return nil, engineError(err)
	}

	result, err := Reconcile(outcome, table)
	if err != nil {
		log.Error("Engine outcome rejected", zap.Error(err))
		return nil, err
	}
	result.Schemes = schemeNamesOf(constraints)
	result.Ignored = ignored

	log.Info("Job completed",
		zap.Bool("optimum_found", result.OptimumFound),
		zap.Int("rows", table.Len()),
		zap.Duration("duration", time.Since(start)),
	)

	return result, nil
}

// FlatObjects views flat-attribute data as single-attribute objects
func FlatObjects(data []AttributeData) []ObjectData {
	objects := make([]ObjectData, 0, len(data))
	for _, d := range data {
		objects = append(objects, ObjectData{
			Values: []Attribute{NewAttribute(FlatAttributeName, d.Value)},
		})
	}
	return objects
}

func requestsKMap(pets []Pet) bool {
	for _, p := range pets {
		if s, ok := ParseScheme(p.Scheme); ok && s == SchemeKMap {
			return true
		}
	}
	return false
}

func schemeNamesOf(constraints []Constraint) []string {
	names := make([]string, 0, len(constraints))
	for _, c := range constraints {
		names = append(names, c.Scheme().String())
	}
	return names
}

// usableContext keeps the stored rows that assemble cleanly under schema
func usableContext(schema Schema, stored []ObjectData) []ObjectData {
	usable := make([]ObjectData, 0, len(stored))
	for _, o := range stored {
		if _, err := AssembleTable(schema, []ObjectData{o}); err != nil {
			continue
		}
		usable = append(usable, o)
	}
	return usable
}
