package datamesh

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/corebridge/corebridge/pkg/models"
)

// aggregate inlines related records under each relationship key. List
// responses are expanded per element in parallel; expansion is bounded to one
// hop, so related records are returned as their backends serve them, never
// re-expanded.
func (o *Orchestrator) aggregate(ctx context.Context, req *MeshRequest, model *models.LogicModuleModel) any {
	params, err := o.resolver.ParamsFor(ctx, model)
	if err != nil {
		o.logger.Warn("failed to resolve relationships for expansion",
			zap.String("model", model.Model), zap.Error(err))
		return req.Data
	}
	if len(params) == 0 {
		return req.Data
	}

	switch data := req.Data.(type) {
	case map[string]any:
		o.expandRecord(ctx, req, params, data)
		return data
	case []any:
		var wg sync.WaitGroup
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok {
				continue
			}
			wg.Add(1)
			go func(record map[string]any) {
				defer wg.Done()
				o.expandRecord(ctx, req, params, record)
			}(record)
		}
		wg.Wait()
		return data
	default:
		return req.Data
	}
}

// expandRecord resolves every relationship of one record concurrently. A
// failing relationship leaves its key unset and files the failure under
// MeshErrorsField; siblings proceed. Goroutines read only snapshotted PKs
// and write only their own result slot; the record map itself is touched
// single-threaded after the wait.
func (o *Orchestrator) expandRecord(ctx context.Context, req *MeshRequest, params []*RelationshipParams, record map[string]any) {
	type expansion struct {
		related []any
		err     error
	}

	results := make([]*expansion, len(params))
	var wg sync.WaitGroup
	for i, p := range params {
		pk := firstPK(record[p.PrimaryPKName])
		if pk == "" {
			continue
		}

		wg.Add(1)
		go func(i int, p *RelationshipParams, pk string) {
			defer wg.Done()

			related, err := o.fetchRelated(ctx, req, p, pk)
			results[i] = &expansion{related: related, err: err}
		}(i, p, pk)
	}
	wg.Wait()

	for i, res := range results {
		if res == nil {
			continue
		}
		key := params[i].Edge.Relationship.Key
		if res.err != nil {
			attachMeshError(record, key, res.err.Error())
			continue
		}
		record[key] = res.related
	}
}

// fetchRelated looks up the joined PKs and retrieves each related record.
// The result is always an array, even for 1:1 relationships.
func (o *Orchestrator) fetchRelated(ctx context.Context, req *MeshRequest, p *RelationshipParams, pk string) ([]any, error) {
	pks, err := o.joins.RelatedPKs(ctx, p.Edge, pk, req.OrganizationUUID)
	if err != nil {
		return nil, err
	}

	related := make([]any, 0, len(pks))
	for _, relatedPK := range pks {
		obj, err := o.send(ctx, req, p, http.MethodGet,
			p.RelatedModel.Endpoint+relatedPK+"/", nil)
		if err != nil {
			return nil, err
		}
		related = append(related, obj)
	}
	return related, nil
}
